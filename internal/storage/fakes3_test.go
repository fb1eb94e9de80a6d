package storage_test

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const fakeLastModified = "2024-05-01T10:00:00Z"

// fakeS3 serves the path-style subset of the S3 REST API the gateway uses.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]map[string][]byte
	denied   map[string]bool
	requests []string
}

type listEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int    `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type listBucketResult struct {
	XMLName     xml.Name    `xml:"ListBucketResult"`
	Name        string      `xml:"Name"`
	Prefix      string      `xml:"Prefix"`
	KeyCount    int         `xml:"KeyCount"`
	MaxKeys     int         `xml:"MaxKeys"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func newFakeS3(t *testing.T, buckets ...string) (*fakeS3, *httptest.Server) {
	t.Helper()

	fake := &fakeS3{
		objects: make(map[string]map[string][]byte),
		denied:  make(map[string]bool),
	}

	for _, bucket := range buckets {
		fake.objects[bucket] = make(map[string][]byte)
	}

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return fake, server
}

func (f *fakeS3) put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.objects[bucket][key] = data
}

func (f *fakeS3) get(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[bucket][key]

	return data, ok
}

func (f *fakeS3) deny(bucket, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.denied[bucket+"/"+key] = true
}

func (f *fakeS3) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.requests...)
}

func (f *fakeS3) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	path := strings.TrimPrefix(request.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, request.Method+" /"+path)

	objects, ok := f.objects[bucket]
	if !ok {
		writeS3Error(writer, http.StatusNotFound, "NoSuchBucket")

		return
	}

	if f.denied[path] {
		writeS3Error(writer, http.StatusForbidden, "AccessDenied")

		return
	}

	switch {
	case key == "" && request.Method == http.MethodHead:
		writer.WriteHeader(http.StatusOK)
	case key == "" && request.Method == http.MethodGet:
		writeListing(writer, bucket, request.URL.Query().Get("prefix"), objects)
	case request.Method == http.MethodPut:
		body, err := io.ReadAll(request.Body)
		if err != nil {
			writeS3Error(writer, http.StatusInternalServerError, "InternalError")

			return
		}

		objects[key] = body
		writer.Header().Set("ETag", `"fake-etag"`)
		writer.WriteHeader(http.StatusOK)
	case request.Method == http.MethodGet || request.Method == http.MethodHead:
		data, found := objects[key]
		if !found {
			writeS3Error(writer, http.StatusNotFound, "NoSuchKey")

			return
		}

		writer.Header().Set("Content-Length", strconv.Itoa(len(data)))
		writer.Header().Set("Last-Modified", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		writer.Header().Set("ETag", `"fake-etag"`)
		writer.WriteHeader(http.StatusOK)

		if request.Method == http.MethodGet {
			_, _ = writer.Write(data)
		}
	default:
		writeS3Error(writer, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func writeListing(writer http.ResponseWriter, bucket, prefix string, objects map[string][]byte) {
	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	result := listBucketResult{Name: bucket, Prefix: prefix, KeyCount: len(keys), MaxKeys: 1000}
	for _, key := range keys {
		result.Contents = append(result.Contents, listEntry{
			Key:          key,
			LastModified: fakeLastModified,
			ETag:         `"fake-etag"`,
			Size:         len(objects[key]),
			StorageClass: "STANDARD",
		})
	}

	writer.Header().Set("Content-Type", "application/xml")
	writer.WriteHeader(http.StatusOK)
	_ = xml.NewEncoder(writer).Encode(result)
}

func writeS3Error(writer http.ResponseWriter, status int, code string) {
	writer.Header().Set("Content-Type", "application/xml")
	writer.WriteHeader(status)
	_ = xml.NewEncoder(writer).Encode(s3Error{Code: code, Message: code})
}
