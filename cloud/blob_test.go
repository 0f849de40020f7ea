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
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestIsBlob(t *testing.T) {
	tests := map[string]bool{
		"gs://bucket/a.wqo":   true,
		"s3://bucket/a.wqo":   true,
		"file://bucket/a.wqo": true,
		"/tmp/a.wqo":          false,
		"https://x/a.wqo":     false,
	}
	for path, want := range tests {
		if IsBlob(path) != want {
			t.Errorf("%s: have %v, want %v", path, !want, want)
		}
	}
}

func TestSplitURL(t *testing.T) {
	b, k, err := SplitURL("s3://results/run1/out.wqo")
	if err != nil {
		t.Fatal(err)
	}
	if b != "s3://results" || k != "run1/out.wqo" {
		t.Errorf("have %s, %s", b, k)
	}
	if _, _, err := SplitURL("s3://results"); err == nil {
		t.Error("expected an error for a missing key")
	}
}

func TestOpenBucketInvalid(t *testing.T) {
	if _, err := OpenBucket(context.Background(), "ftp://bucket"); err == nil {
		t.Error("expected an error for an invalid provider")
	}
}

func TestBlobRoundTrip(t *testing.T) {
	const dir = "testbucket"
	if err := os.Mkdir(dir, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	ctx := context.Background()

	want := []byte("node quality results")
	if err := WriteBlob(ctx, "file://"+dir+"/results.wqo", want); err != nil {
		t.Fatal(err)
	}
	have, err := ReadBlob(ctx, "file://"+dir+"/results.wqo")
	if err != nil {
		t.Fatal(err)
	}
	if string(have) != string(want) {
		t.Errorf("have %q, want %q", have, want)
	}

	local := filepath.Join(dir, "local.txt")
	if err := ioutil.WriteFile(local, want, 0644); err != nil {
		t.Fatal(err)
	}
	if err := Upload(ctx, local, "file://"+dir+"/uploaded.txt"); err != nil {
		t.Fatal(err)
	}
	path, err := Download(ctx, "file://"+dir+"/uploaded.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(filepath.Dir(path))
	have, err = ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(have) != string(want) {
		t.Errorf("downloaded %q, want %q", have, want)
	}

	if p, err := Download(ctx, "/dev/null"); err != nil || p != "/dev/null" {
		t.Errorf("local file: have %s, %v", p, err)
	}
}
