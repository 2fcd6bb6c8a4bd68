package file_info

const (
	fileInfoColumns = `id, gid, location, sort_order, original_name, stored_name, relative_path, extension, mime_type, is_image, size_bytes, status, created_at, updated_at`

	SelectFileInfoByID = `
		SELECT ` + fileInfoColumns + `
		FROM file_infos
		WHERE id = $1
	`
	// empty location and status 'ALL' act as wildcards
	SelectFileInfosByKey = `
		SELECT ` + fileInfoColumns + `
		FROM file_infos
		WHERE gid = $1
		  AND ($2::text = '' OR location = $2)
		  AND ($3::text = 'ALL' OR status = $3)
		ORDER BY sort_order, id
	`
	SelectStaleTempFileInfos = `
		SELECT ` + fileInfoColumns + `
		FROM file_infos
		WHERE status = 'TEMP' AND created_at < $1
		ORDER BY id
	`
	InsertFileInfo = `
		INSERT INTO file_infos (gid, location, sort_order, original_name, stored_name, relative_path, extension, mime_type, is_image, size_bytes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'TEMP')
		RETURNING
		  ` + fileInfoColumns + `
	`
	CommitFileInfosByKey = `
		UPDATE file_infos
		SET status = 'DONE',
		    updated_at = now()
		WHERE gid = $1
		  AND ($2::text = '' OR location = $2)
		  AND status = 'TEMP'
		RETURNING id
	`
	DeleteFileInfoByID = `DELETE FROM file_infos WHERE id = $1`
)
