package local

import (
	"mime"
	"path"
	"strings"
)

// ClassifyKind determines a coarse file kind from the name's extension.
// Returns one of: "dir", "video", "audio", "image", "pdf", "text", "blob".
func ClassifyKind(name string, isDir bool) string {
	if isDir {
		return "dir"
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return "blob"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return classifyByExtension(ext)
	}

	major, minor, _ := strings.Cut(mimeType, "/")
	switch major {
	case "video", "audio", "image", "text":
		return major
	case "application":
		return classifyApplication(minor, ext)
	}
	return "blob"
}

func classifyByExtension(ext string) string {
	switch ext {
	case ".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v":
		return "video"
	case ".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a", ".opus":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".tiff", ".ico":
		return "image"
	case ".pdf":
		return "pdf"
	case ".txt", ".md", ".json", ".xml", ".csv", ".yaml", ".yml", ".toml",
		".go", ".py", ".js", ".ts", ".html", ".css", ".sh", ".bash",
		".c", ".h", ".cpp", ".java", ".rs", ".rb", ".php", ".vue", ".sql":
		return "text"
	}
	return "blob"
}

func classifyApplication(subtype, ext string) string {
	if subtype == "pdf" || ext == ".pdf" {
		return "pdf"
	}
	if strings.Contains(subtype, "json") || strings.Contains(subtype, "xml") ||
		strings.Contains(subtype, "javascript") || strings.Contains(subtype, "typescript") {
		return "text"
	}
	return "blob"
}
