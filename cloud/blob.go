/*
Copyright © 2019 the WQNet authors.
This file is part of WQNet.

WQNet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WQNet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WQNet.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/google/go-cloud/blob"
)

// ReadBlob reads the blob at the given address.
func ReadBlob(ctx context.Context, path string) ([]byte, error) {
	bucketName, key, err := SplitURL(path)
	if err != nil {
		return nil, err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	r, err := bucket.NewReader(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading blob %s: %v", path, err)
	}
	defer r.Close()
	var b bytes.Buffer
	if _, err = io.Copy(&b, r); err != nil {
		return nil, fmt.Errorf("cloud: reading blob %s: %v", path, err)
	}
	return b.Bytes(), nil
}

// WriteBlob writes data to the blob at the given address.
func WriteBlob(ctx context.Context, path string, data []byte) error {
	return copyToBlob(ctx, path, bytes.NewReader(data))
}

// Upload copies the local file at localPath to the blob at blobPath.
func Upload(ctx context.Context, localPath, blobPath string) error {
	r, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %v", localPath, err)
	}
	defer r.Close()
	return copyToBlob(ctx, blobPath, r)
}

func copyToBlob(ctx context.Context, path string, r io.Reader) error {
	bucketName, key, err := SplitURL(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %v", path, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %v", path, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", path, err)
	}
	return nil
}

// Download returns a local path for the file at path. Local files are
// returned unchanged. Blobs are copied into a new temporary directory
// and the path of the copy is returned.
func Download(ctx context.Context, path string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	data, err := ReadBlob(ctx, path)
	if err != nil {
		return "", err
	}
	dir, err := ioutil.TempDir("", "wqnet")
	if err != nil {
		return "", fmt.Errorf("cloud: creating temporary download directory: %v", err)
	}
	local := filepath.Join(dir, filepath.Base(path))
	if err := ioutil.WriteFile(local, data, 0644); err != nil {
		return "", fmt.Errorf("cloud: saving download: %v", err)
	}
	return local, nil
}
