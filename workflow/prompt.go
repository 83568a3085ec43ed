package workflow

import "fmt"

const closing = "Provide a detailed, user-friendly, and actionable response."

// LocalPrompt is sent alongside an uploaded video.
func LocalPrompt(query string) string {
	return fmt.Sprintf("Analyze the uploaded video for content and context.\n"+
		"Respond to the following query using video insights and supplementary web research:\n"+
		"%s\n\n%s", query, closing)
}

// RemotePrompt embeds the video URL since no attachment is sent.
func RemotePrompt(url, query string) string {
	return fmt.Sprintf("Analyze the YouTube video at the following URL: %s.\n"+
		"Respond to the following query using the video content and supplementary web research:\n"+
		"%s\n\n%s", url, query, closing)
}
