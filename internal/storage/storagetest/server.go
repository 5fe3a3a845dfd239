// Package storagetest provides an in-memory S3-compatible HTTP endpoint for
// tests. It implements only the calls the broker and its clients make: object
// PUT/HEAD and the multipart upload API. Signatures are not verified.
package storagetest

import (
	"crypto/md5"
	"encoding/hex"
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
)

type object struct {
	data        []byte
	etag        string
	contentType string
	meta        map[string]string
	modified    time.Time
}

type upload struct {
	key         string
	contentType string
	parts       map[int]string // partNumber -> etag
	data        map[int][]byte
}

// Server is a fake S3 endpoint serving a single bucket in path-style addressing.
type Server struct {
	*httptest.Server

	Bucket string

	mu       sync.Mutex
	objects  map[string]*object
	uploads  map[string]*upload
	nextID   int
	denyAll  bool
	requests []string
}

// NewServer starts a fake endpoint. Close it when done.
func NewServer(bucket string) *Server {
	s := &Server{
		Bucket:  bucket,
		objects: make(map[string]*object),
		uploads: make(map[string]*upload),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint returns host:port of the server.
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// PutObject stores an object directly, bypassing HTTP.
func (s *Server) PutObject(key string, data []byte, meta map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = newObject(data, "application/octet-stream", meta)
}

// SetMetadata sets one user metadata value on an existing object, as an
// external scanner would.
func (s *Server) SetMetadata(key, name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[key]; ok {
		o.meta[strings.ToLower(name)] = value
	}
}

// Object returns the stored bytes of key.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return o.data, true
}

// OpenUploads returns the number of multipart uploads in progress.
func (s *Server) OpenUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// DenyAll makes every subsequent request fail with 403 AccessDenied.
func (s *Server) DenyAll(deny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyAll = deny
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func newObject(data []byte, contentType string, meta map[string]string) *object {
	sum := md5.Sum(data)
	m := make(map[string]string, len(meta))
	for k, v := range meta {
		m[strings.ToLower(k)] = v
	}
	return &object{
		data:        data,
		etag:        `"` + hex.EncodeToString(sum[:]) + `"`,
		contentType: contentType,
		meta:        m,
		modified:    time.Now().UTC(),
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	prefix := "/" + s.Bucket + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) || len(r.URL.Path) == len(prefix) {
		writeError(w, http.StatusNotFound, "NoSuchBucket", "bucket not found")
		return
	}
	if s.denyAll {
		writeError(w, http.StatusForbidden, "AccessDenied", "Access Denied.")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, prefix)
	q := r.URL.Query()
	_, initiate := q["uploads"]
	uploadID := q.Get("uploadId")

	switch {
	case r.Method == http.MethodHead:
		s.head(w, key)
	case r.Method == http.MethodPut && uploadID != "":
		s.uploadPart(w, r, key, uploadID, q.Get("partNumber"))
	case r.Method == http.MethodPut:
		s.put(w, r, key)
	case r.Method == http.MethodPost && initiate:
		s.initiate(w, r, key)
	case r.Method == http.MethodPost && uploadID != "":
		s.complete(w, r, key, uploadID)
	case r.Method == http.MethodDelete && uploadID != "":
		s.abort(w, key, uploadID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "unsupported request")
	}
}

func (s *Server) head(w http.ResponseWriter, key string) {
	o, ok := s.objects[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h := w.Header()
	h.Set("ETag", o.etag)
	h.Set("Last-Modified", o.modified.Format(http.TimeFormat))
	h.Set("Content-Type", o.contentType)
	h.Set("Content-Length", strconv.Itoa(len(o.data)))
	for k, v := range o.meta {
		h.Set("X-Amz-Meta-"+k, v)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request, key string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	o := newObject(data, r.Header.Get("Content-Type"), nil)
	s.objects[key] = o
	w.Header().Set("ETag", o.etag)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) initiate(w http.ResponseWriter, r *http.Request, key string) {
	s.nextID++
	id := fmt.Sprintf("upload-%d", s.nextID)
	s.uploads[id] = &upload{
		key:         key,
		contentType: r.Header.Get("Content-Type"),
		parts:       make(map[int]string),
		data:        make(map[int][]byte),
	}
	writeXML(w, http.StatusOK, initiateResult{Bucket: s.Bucket, Key: key, UploadID: id})
}

func (s *Server) uploadPart(w http.ResponseWriter, r *http.Request, key, uploadID, partNumber string) {
	u, ok := s.uploads[uploadID]
	if !ok || u.key != key {
		writeError(w, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
		return
	}
	n, err := strconv.Atoi(partNumber)
	if err != nil || n < 1 || n > 10000 {
		writeError(w, http.StatusBadRequest, "InvalidArgument", "invalid part number")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	sum := md5.Sum(data)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	u.parts[n] = etag
	u.data[n] = data
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request, key, uploadID string) {
	u, ok := s.uploads[uploadID]
	if !ok || u.key != key {
		writeError(w, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
		return
	}

	var req completeRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Parts) == 0 {
		writeError(w, http.StatusBadRequest, "MalformedXML", "The XML you provided was not well-formed.")
		return
	}

	var body []byte
	var digests []byte
	last := 0
	for _, p := range req.Parts {
		if p.PartNumber <= last {
			writeError(w, http.StatusBadRequest, "InvalidPartOrder", "The list of parts was not in ascending order.")
			return
		}
		last = p.PartNumber
		stored, ok := u.parts[p.PartNumber]
		if !ok || strings.Trim(stored, `"`) != strings.Trim(p.ETag, `"`) {
			writeError(w, http.StatusBadRequest, "InvalidPart", "One or more of the specified parts could not be found.")
			return
		}
		body = append(body, u.data[p.PartNumber]...)
		raw, _ := hex.DecodeString(strings.Trim(stored, `"`))
		digests = append(digests, raw...)
	}

	sum := md5.Sum(digests)
	o := newObject(body, u.contentType, nil)
	o.etag = fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(sum[:]), len(req.Parts))
	s.objects[key] = o
	delete(s.uploads, uploadID)

	writeXML(w, http.StatusOK, completeResult{
		Location: s.URL + "/" + s.Bucket + "/" + key,
		Bucket:   s.Bucket,
		Key:      key,
		ETag:     o.etag,
	})
}

func (s *Server) abort(w http.ResponseWriter, key, uploadID string) {
	u, ok := s.uploads[uploadID]
	if !ok || u.key != key {
		writeError(w, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
		return
	}
	delete(s.uploads, uploadID)
	w.WriteHeader(http.StatusNoContent)
}

// UploadedParts returns the part numbers uploaded so far for uploadID, sorted.
func (s *Server) UploadedParts(uploadID string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[uploadID]
	if !ok {
		return nil
	}
	nums := make([]int, 0, len(u.parts))
	for n := range u.parts {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

type initiateResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

type completeRequest struct {
	XMLName xml.Name `xml:"CompleteMultipartUpload"`
	Parts   []struct {
		PartNumber int    `xml:"PartNumber"`
		ETag       string `xml:"ETag"`
	} `xml:"Part"`
}

type completeResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

type errorResult struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeXML(w, status, errorResult{Code: code, Message: message, RequestID: "fake"})
}
