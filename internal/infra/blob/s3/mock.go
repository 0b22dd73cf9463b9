package s3

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MockBucket is the bucket name used by NewMockForTests.
const MockBucket = "mock-bucket"

// NewMockForTests returns a Store whose client talks to an in-process fake
// bucket. It understands PutObject (including If-None-Match), GetObject and
// ListObjectsV2 with a page size of MaxKeys (default 2 in the fake).
func NewMockForTests() *Store {
	fake := &fakeBucket{objects: make(map[string]fakeObject), pageSize: 2}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(DefaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIAMOCK", "mock-secret", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: handlerTransport{fake}}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return newStore(client, MockBucket)
}

// handlerTransport serves requests from an http.Handler without a network.
type handlerTransport struct{ h http.Handler }

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	pageSize int
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		b.list(w, r)
	case r.Method == http.MethodPut && key != "":
		b.put(w, r, key)
	case r.Method == http.MethodGet && key != "":
		b.get(w, key)
	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

func (b *fakeBucket) put(w http.ResponseWriter, r *http.Request, key string) {
	if _, exists := b.objects[key]; exists && r.Header.Get("If-None-Match") == "*" {
		writeS3Error(w, http.StatusPreconditionFailed, "PreconditionFailed")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		body = decodeAWSChunked(body)
	}
	meta := make(map[string]string)
	for name, vals := range r.Header {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") && len(vals) > 0 {
			meta[strings.TrimPrefix(lower, "x-amz-meta-")] = vals[0]
		}
	}
	b.objects[key] = fakeObject{
		body:        body,
		contentType: r.Header.Get("Content-Type"),
		metadata:    meta,
		modified:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, len(b.objects)))
	w.WriteHeader(http.StatusOK)
}

func (b *fakeBucket) get(w http.ResponseWriter, key string) {
	obj, ok := b.objects[key]
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchKey")
		return
	}
	h := w.Header()
	h.Set("Content-Length", strconv.Itoa(len(obj.body)))
	h.Set("Content-Type", obj.contentType)
	h.Set("ETag", `"etag"`)
	h.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
	for k, v := range obj.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.body)
}

type listContents struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

type listResult struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	IsTruncated           bool           `xml:"IsTruncated"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	KeyCount              int            `xml:"KeyCount"`
	Contents              []listContents `xml:"Contents"`
}

func (b *fakeBucket) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if tok := q.Get("continuation-token"); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+b.pageSize, len(keys))
	res := listResult{}
	for _, k := range keys[start:end] {
		obj := b.objects[k]
		res.Contents = append(res.Contents, listContents{
			Key:          k,
			Size:         int64(len(obj.body)),
			ETag:         `"etag"`,
			LastModified: obj.modified.Format(time.RFC3339),
		})
	}
	res.KeyCount = len(res.Contents)
	if end < len(keys) {
		res.IsTruncated = true
		res.NextContinuationToken = strconv.Itoa(end)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_ = xml.NewEncoder(w).Encode(res)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<Error><Code>%s</Code><Message>%s</Message></Error>", code, code)
}

// decodeAWSChunked strips aws-chunked framing: <hex size>[;ext]\r\n<data>\r\n
// repeated until a zero sized chunk, followed by optional trailers.
func decodeAWSChunked(raw []byte) []byte {
	var out bytes.Buffer
	for len(raw) > 0 {
		line, rest, ok := bytes.Cut(raw, []byte("\r\n"))
		if !ok {
			break
		}
		sizeField, _, _ := bytes.Cut(line, []byte(";"))
		size, err := strconv.ParseInt(string(sizeField), 16, 64)
		if err != nil || size == 0 || int64(len(rest)) < size {
			break
		}
		out.Write(rest[:size])
		raw = bytes.TrimPrefix(rest[size:], []byte("\r\n"))
	}
	return out.Bytes()
}
