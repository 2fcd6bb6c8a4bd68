package file_info

import (
	domain "file-manager-api/internal/domain/file_info"
)

func fromDBModel(model *FileInfo) *domain.FileInfo {
	var fi = &domain.FileInfo{
		ID:       domain.ID(model.ID),
		GroupID:  model.GroupID,
		Location: model.Location,
		Order:    model.SortOrder,

		OriginalName: model.OriginalName,
		StoredName:   model.StoredName,
		RelativePath: model.RelativePath,
		Extension:    model.Extension,
		MimeType:     model.MimeType,
		IsImage:      model.IsImage,
		SizeBytes:    model.SizeBytes,

		Status: domain.Status(model.Status),

		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}

	return fi
}

func fromDBModels(models *FileInfos) domain.FileInfos {
	fis := make(domain.FileInfos, len(*models))
	for idx, fi := range *models {
		fis[idx] = fromDBModel(fi)
	}

	return fis
}
