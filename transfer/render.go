package transfer

import "fmt"

const (
	downloadingText = "⏬ Downloading file..."
	uploadingText   = "☁️ Uploading..."
)

func megabytes(b int64) string {
	return fmt.Sprintf("%.1f MB", float64(b)/1024/1024)
}

func downloadProgressText(s Sample) string {
	if s.Total <= 0 {
		return fmt.Sprintf("⏬ Downloading... %s", megabytes(s.Done))
	}
	return fmt.Sprintf("⏬ Downloading... %d%%\n%s / %s", s.Percent(), megabytes(s.Done), megabytes(s.Total))
}

func uploadProgressText(s Sample) string {
	return fmt.Sprintf("☁️ Uploading... %d%%", s.Percent())
}

func successText(s Success) string {
	return fmt.Sprintf("✅ File uploaded successfully!\n\n📁 File Name: %s\n🔗 Link: %s", s.Name, s.Link)
}
