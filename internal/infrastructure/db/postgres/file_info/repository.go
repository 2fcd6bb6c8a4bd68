package file_info

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/db/postgres"
)

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) file_info.Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFileInfo(row scanner) (*FileInfo, error) {
	fi := new(FileInfo)
	err := row.Scan(
		&fi.ID,
		&fi.GroupID,
		&fi.Location,
		&fi.SortOrder,

		&fi.OriginalName,
		&fi.StoredName,
		&fi.RelativePath,
		&fi.Extension,
		&fi.MimeType,
		&fi.IsImage,
		&fi.SizeBytes,

		&fi.Status,

		&fi.CreatedAt,
		&fi.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return fi, nil
}

func (r *Repository) CreateFileInfo(ctx context.Context, req *file_info.FileInfo) (*file_info.FileInfo, error) {
	fi, err := scanFileInfo(r.db.QueryRow(
		ctx,
		InsertFileInfo,
		req.GroupID, req.Location, req.Order, req.OriginalName, req.StoredName,
		req.RelativePath, req.Extension, req.MimeType, req.IsImage, req.SizeBytes,
	))
	if err != nil {
		if postgres.IsPgUniqueViolation(err) {
			return nil, ErrStoredNameExists
		}
		if postgres.IsPgStringTooLong(err) {
			return nil, fmt.Errorf("%w: %w", file_info.ErrInvalidInput, err)
		}
		return nil, err
	}

	return fromDBModel(fi), nil
}

func (r *Repository) FetchFileInfo(ctx context.Context, id file_info.ID) (*file_info.FileInfo, error) {
	fi, err := scanFileInfo(r.db.QueryRow(ctx, SelectFileInfoByID, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file info %d: %w", id, file_info.ErrNotFound)
		}
		return nil, err
	}

	return fromDBModel(fi), nil
}

func (r *Repository) FetchFileInfos(ctx context.Context, key file_info.Key, status file_info.Status) (file_info.FileInfos, error) {
	return r.fetchFileInfos(ctx, SelectFileInfosByKey, key.GroupID, key.Location, string(status))
}

func (r *Repository) FetchStaleTemp(ctx context.Context, before time.Time) (file_info.FileInfos, error) {
	return r.fetchFileInfos(ctx, SelectStaleTempFileInfos, before)
}

func (r *Repository) fetchFileInfos(ctx context.Context, query string, args ...any) (file_info.FileInfos, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fis := FileInfos{}
	for rows.Next() {
		fi, err := scanFileInfo(rows)
		if err != nil {
			return nil, err
		}

		fis = append(fis, fi)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return fromDBModels(&fis), nil
}

func (r *Repository) CommitFileInfos(ctx context.Context, key file_info.Key) ([]file_info.ID, error) {
	rows, err := r.db.Query(ctx, CommitFileInfosByKey, key.GroupID, key.Location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []file_info.ID
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, file_info.ID(id))
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *Repository) DeleteFileInfo(ctx context.Context, id file_info.ID) error {
	tag, err := r.db.Exec(ctx, DeleteFileInfoByID, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file info %d: %w", id, file_info.ErrNotFound)
	}

	return nil
}
