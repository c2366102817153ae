//go:build anyfs_json

package anyfs

import (
	"context"
	"encoding/json"
)

// ReadJSON reads path and unmarshals it into v. Only compiled in when
// built with -tags anyfs_json, an opt-in extension so the base module
// has no JSON dependency.
func ReadJSON[B Read](ctx context.Context, backend B, path Path, v any) error {
	data, err := backend.Read(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// WriteJSON marshals v and writes it to path.
func WriteJSON[B Write](ctx context.Context, backend B, path Path, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return backend.Write(ctx, path, data)
}
