package file_info

import (
	"strconv"

	"file-manager-api/internal/domain/file_info"
)

// ToResponseFileInfo maps a record; thumbRoute, when set, yields thumb_url for images.
func ToResponseFileInfo(fDomain file_info.FileInfo, thumbRoute string) FileInfo {
	var fi = FileInfo{
		ID:           int64(fDomain.ID),
		GroupID:      fDomain.GroupID,
		Location:     fDomain.Location,
		Order:        fDomain.Order,
		OriginalName: fDomain.OriginalName,
		StoredName:   fDomain.StoredName,
		Extension:    fDomain.Extension,
		MimeType:     fDomain.MimeType,
		IsImage:      fDomain.IsImage,
		SizeBytes:    fDomain.SizeBytes,
		Status:       string(fDomain.Status),
		URL:          fDomain.URL,
		CreatedAt:    fDomain.CreatedAt,
		UpdatedAt:    fDomain.UpdatedAt,
	}
	if fDomain.IsImage && thumbRoute != "" {
		fi.ThumbURL = thumbRoute + "?id=" + strconv.FormatInt(int64(fDomain.ID), 10)
	}

	return fi
}

func ToResponseFileInfos(fDomain file_info.FileInfos, thumbRoute string) FileInfos {
	fis := make(FileInfos, len(fDomain))
	for idx, f := range fDomain {
		fis[idx] = ToResponseFileInfo(*f, thumbRoute)
	}

	return fis
}
