package hiveagent

import (
	"context"
	"fmt"
	"net/http"
)

// CreateEntry stores data under namespace and returns the created entry.
func CreateEntry(ctx context.Context, t *Transport, baseURL, namespace string, data any) (Entry, error) {
	target := joinURL(baseURL, EntryEndpoint, namespace)
	t.logger.Debug("Creating entry in %s at %s", namespace, target)

	var created Entry
	if err := t.doJSON(ctx, http.MethodPost, target, nil, data, &created); err != nil {
		return nil, wrapOpError(fmt.Sprintf("create entry in %s", namespace), err)
	}
	return created, nil
}

// ListEntries returns every entry of namespace.
func ListEntries(ctx context.Context, t *Transport, baseURL, namespace string) ([]Entry, error) {
	target := joinURL(baseURL, EntryEndpoint, namespace)
	t.logger.Debug("Getting all entries in %s at %s", namespace, target)

	var entries []Entry
	if err := t.doJSON(ctx, http.MethodGet, target, nil, nil, &entries); err != nil {
		return nil, wrapOpError(fmt.Sprintf("get entries from %s", namespace), err)
	}
	return entries, nil
}

// GetEntryByID returns a single entry.
func GetEntryByID(ctx context.Context, t *Transport, baseURL, namespace, entryID string) (Entry, error) {
	target := joinURL(baseURL, EntryEndpoint, namespace, entryID)
	t.logger.Debug("Getting entry %s from %s at %s", entryID, namespace, target)

	var entry Entry
	if err := t.doJSON(ctx, http.MethodGet, target, nil, nil, &entry); err != nil {
		return nil, wrapOpError(fmt.Sprintf("get entry %s from %s", entryID, namespace), err)
	}
	return entry, nil
}

// UpdateEntry replaces the data of an entry and returns the updated entry.
func UpdateEntry(ctx context.Context, t *Transport, baseURL, namespace, entryID string, data any) (Entry, error) {
	target := joinURL(baseURL, EntryEndpoint, namespace, entryID)
	t.logger.Debug("Updating entry %s from %s at %s", entryID, namespace, target)

	var updated Entry
	if err := t.doJSON(ctx, http.MethodPut, target, nil, data, &updated); err != nil {
		return nil, wrapOpError(fmt.Sprintf("update entry %s in %s", entryID, namespace), err)
	}
	return updated, nil
}

// DeleteEntry removes an entry and returns the server's deletion result.
func DeleteEntry(ctx context.Context, t *Transport, baseURL, namespace, entryID string) (map[string]any, error) {
	target := joinURL(baseURL, EntryEndpoint, namespace, entryID)
	t.logger.Debug("Deleting %s from %s at %s", entryID, namespace, target)

	var result map[string]any
	if err := t.doJSON(ctx, http.MethodDelete, target, nil, nil, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("delete entry %s from %s", entryID, namespace), err)
	}
	return result, nil
}
