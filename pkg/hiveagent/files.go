package hiveagent

import (
	"context"
	"fmt"
	"net/http"
)

// UploadFiles sends every path in one multipart POST. All files are closed
// before returning, whatever the outcome.
func UploadFiles(ctx context.Context, t *Transport, baseURL string, paths []string) (UploadResult, error) {
	const op = "upload files"
	target := joinURL(baseURL, UploadFilesEndpoint)

	if len(paths) == 0 {
		return UploadResult{}, wrapOpError(op, &ValidationError{Field: "paths", Reason: "at least one file is required"})
	}

	opened, release, err := openLocalFiles(paths)
	defer release()
	if err != nil {
		return UploadResult{}, wrapOpError(op, err)
	}

	form, contentType, err := buildMultipart(nil, opened)
	if err != nil {
		return UploadResult{}, wrapOpError(op, &UnexpectedError{Err: err})
	}

	t.logger.Debug("Uploading %d file(s) to %s", len(opened), target)
	body, err := t.do(ctx, apiRequest{
		method:      http.MethodPost,
		url:         target,
		body:        form,
		contentType: contentType,
	})
	if err != nil {
		return UploadResult{}, wrapOpError(op, err)
	}

	var result UploadResult
	if err := decodeFull(body, &result, &result.Response); err != nil {
		return UploadResult{}, wrapOpError(op, err)
	}
	return result, nil
}

// ListFiles returns the names of the files stored on the server.
func ListFiles(ctx context.Context, t *Transport, baseURL string) (FileList, error) {
	body, err := t.do(ctx, apiRequest{method: http.MethodGet, url: joinURL(baseURL, FilesEndpoint)})
	if err != nil {
		return FileList{}, wrapOpError("list files", err)
	}
	var list FileList
	if err := decodeFull(body, &list, &list.Response); err != nil {
		return FileList{}, wrapOpError("list files", err)
	}
	return list, nil
}

// DeleteFile removes filename from the server.
func DeleteFile(ctx context.Context, t *Transport, baseURL, filename string) (map[string]any, error) {
	target := joinURL(baseURL, FilesEndpoint, filename)
	t.logger.Debug("Deleting file %s at %s", filename, target)

	var result map[string]any
	if err := t.doJSON(ctx, http.MethodDelete, target, nil, nil, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("delete file %s", filename), err)
	}
	return result, nil
}

// RenameFile renames oldName to newName on the server. The request has no body.
func RenameFile(ctx context.Context, t *Transport, baseURL, oldName, newName string) (map[string]any, error) {
	target := joinURL(baseURL, FilesEndpoint, oldName, newName)
	t.logger.Debug("Renaming file from %s to %s at %s", oldName, newName, target)

	var result map[string]any
	if err := t.doJSON(ctx, http.MethodPut, target, nil, nil, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("rename file from %s to %s", oldName, newName), err)
	}
	return result, nil
}
