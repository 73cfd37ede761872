package hiveagent

import (
	"context"
	"fmt"
	"net/http"
)

// CreateTable creates tableName with the given column definitions.
func CreateTable(ctx context.Context, t *Transport, baseURL, tableName string, columns Columns) (map[string]any, error) {
	target := joinURL(baseURL, CreateTableEndpoint)
	t.logger.Debug("Creating table %s at %s", tableName, target)

	var result map[string]any
	payload := createTableRequest{TableName: tableName, Columns: columns}
	if err := t.doJSON(ctx, http.MethodPost, target, nil, payload, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("create table %s", tableName), err)
	}
	return result, nil
}

// InsertData inserts one row. The result carries the id of the new row.
func InsertData(ctx context.Context, t *Transport, baseURL, tableName string, data Row) (map[string]any, error) {
	target := joinURL(baseURL, InsertDataEndpoint)
	t.logger.Debug("Inserting data into %s at %s", tableName, target)

	var result map[string]any
	payload := insertDataRequest{TableName: tableName, Data: data}
	if err := t.doJSON(ctx, http.MethodPost, target, nil, payload, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("insert data into %s", tableName), err)
	}
	return result, nil
}

// ReadData returns the rows of tableName matching filters. A nil filters is
// sent as JSON null and matches every row.
func ReadData(ctx context.Context, t *Transport, baseURL, tableName string, filters Filters) ([]map[string]any, error) {
	target := joinURL(baseURL, ReadDataEndpoint)
	t.logger.Debug("Reading data from %s at %s with filters: %v", tableName, target, filters)

	var rows []map[string]any
	payload := readDataRequest{TableName: tableName, Filters: filters}
	if err := t.doJSON(ctx, http.MethodPost, target, nil, payload, &rows); err != nil {
		return nil, wrapOpError(fmt.Sprintf("read data from %s", tableName), err)
	}
	return rows, nil
}

// UpdateData replaces the data of row id in tableName.
func UpdateData(ctx context.Context, t *Transport, baseURL, tableName string, id int, data Row) (map[string]any, error) {
	target := joinURL(baseURL, UpdateDataEndpoint)
	t.logger.Debug("Updating data in %s with id %d at %s", tableName, id, target)

	var result map[string]any
	payload := updateDataRequest{TableName: tableName, ID: id, Data: data}
	if err := t.doJSON(ctx, http.MethodPut, target, nil, payload, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("update data in %s with id %d", tableName, id), err)
	}
	return result, nil
}

// DeleteData removes row id from tableName. The id travels in a JSON body on
// the DELETE request.
func DeleteData(ctx context.Context, t *Transport, baseURL, tableName string, id int) (map[string]any, error) {
	target := joinURL(baseURL, DeleteDataEndpoint)
	t.logger.Debug("Deleting data from %s with id %d at %s", tableName, id, target)

	var result map[string]any
	payload := deleteDataRequest{TableName: tableName, ID: id}
	if err := t.doJSON(ctx, http.MethodDelete, target, nil, payload, &result); err != nil {
		return nil, wrapOpError(fmt.Sprintf("delete data from %s with id %d", tableName, id), err)
	}
	return result, nil
}
