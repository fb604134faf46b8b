/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"context"
	"net/url"

	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"
)

func init() {
	registry.RegisterFileSystem(Scheme, func(_ context.Context, root *url.URL, _ storagemodels.StorageConfig) (storage.FileSystem, error) {
		return Shared(root.Host), nil
	})
}

var (
	_ storage.FileSystem = (*FileSystem)(nil)
	_ storage.Committer  = (*writer)(nil)
)
