package file_info

import "time"

type (
	FileInfo struct {
		ID           int64     `json:"id"`
		GroupID      string    `json:"gid"`
		Location     string    `json:"location"`
		Order        int       `json:"order"`
		OriginalName string    `json:"original_name"`
		StoredName   string    `json:"stored_name"`
		Extension    string    `json:"extension"`
		MimeType     string    `json:"mime_type"`
		IsImage      bool      `json:"is_image"`
		SizeBytes    int64     `json:"size_bytes"`
		Status       string    `json:"status"`
		URL          string    `json:"url"`
		ThumbURL     string    `json:"thumb_url,omitempty"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}
	FileInfos    []FileInfo
	ResponseData struct {
		Data FileInfos `json:"data"`
	}
)
