package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/productphoto/internal/barcode"
	"github.com/lehigh-university-libraries/productphoto/internal/compositor"
	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
	"github.com/lehigh-university-libraries/productphoto/internal/removal"
	"github.com/lehigh-university-libraries/productphoto/internal/storage"
)

type fakeScanner struct {
	code string
	err  error
}

func (f fakeScanner) Read(context.Context, []byte) (string, error) {
	return f.code, f.err
}

type testServer struct {
	*httptest.Server
	products *storage.ProductStore
	sessions *storage.SessionManager
}

func newTestServer(t *testing.T, scanner BarcodeReader) *testServer {
	t.Helper()
	root := t.TempDir()

	products, err := storage.NewProductStore(filepath.Join(root, "products"))
	require.NoError(t, err)

	sessions := storage.New(func(session models.ProductSession) *pipeline.Pipeline {
		return pipeline.New(session, pipeline.Deps{
			Remover:    removal.Passthrough{},
			Compositor: compositor.New(),
			Sink:       products,
		})
	})

	h := New(Options{
		Sessions:   sessions,
		Products:   products,
		Scanner:    scanner,
		CaptureDir: filepath.Join(root, "captures"),
		PublicURL:  "http://photos.test",
	})

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)
	return &testServer{Server: server, products: products, sessions: sessions}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, name string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postFile(t *testing.T, url, name string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, name, data, fields)
	resp, err := http.Post(url, contentType, body)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func doRequest(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthcheck(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestUploadLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	img := pngImage(t)

	resp := postFile(t, ts.URL+"/api/upload", "photo.png", img, map[string]string{"filename": "7791234.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[models.UploadResult](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, "7791234.png", result.Filename)
	assert.Equal(t, "/uploads/products/7791234.png", result.Path)
	assert.Equal(t, "http://photos.test/uploads/products/7791234.png", result.URL)
	assert.Equal(t, int64(len(img)), result.Size)
	assert.Equal(t, "image/png", result.MimeType)

	resp, err := http.Get(ts.URL + "/api/upload/list")
	require.NoError(t, err)
	list := decode[models.FileList](t, resp)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "7791234.png", list.Files[0].Filename)

	resp, err = http.Get(ts.URL + "/api/upload/7791234.png")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[models.FileDetail](t, resp)
	assert.Equal(t, "7791234.png", detail.Filename)

	resp, err = http.Get(ts.URL + "/uploads/products/7791234.png")
	require.NoError(t, err)
	served, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, img, served)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/upload/7791234.png", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/upload/7791234.png")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errResp := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "File not found", errResp.Error)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/upload/7791234.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadDefaultFilename(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postFile(t, ts.URL+"/api/upload", "shot.png", pngImage(t), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[models.UploadResult](t, resp)
	assert.Regexp(t, `^\d+_shot\.png$`, result.Filename)
}

func TestUploadRejectsNonImage(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postFile(t, ts.URL+"/api/upload", "notes.txt", []byte("just some text"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[models.ErrorResponse](t, resp)
	assert.Contains(t, errResp.Error, "only image files")
}

func TestUploadRejectsLargeFile(t *testing.T) {
	ts := newTestServer(t, nil)

	big := append(pngImage(t), make([]byte, maxUploadSize)...)
	resp := postFile(t, ts.URL+"/api/upload", "big.png", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadRejectsTraversal(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postFile(t, ts.URL+"/api/upload", "a.png", pngImage(t), map[string]string{"filename": "../escape.png"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionWorkflow(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/session/run", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/session", bytes.NewBufferString(`{"product_code":"7791234"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	summary := decode[pipeline.Summary](t, resp)
	assert.Equal(t, "7791234", summary.Session.ProductCode)
	assert.NotEmpty(t, summary.Session.ID)

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/session/run", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	for i := 0; i < 3; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 2+i, 2))
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		resp = postFile(t, ts.URL+"/api/session/photos", "frame.png", buf.Bytes(), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		photo := decode[pipeline.CapturedPhoto](t, resp)
		assert.Equal(t, i+1, photo.SequenceNumber)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/session/photos/7", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/session/photos/x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/session/photos/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decode[pipeline.Summary](t, resp)
	require.Len(t, summary.Items, 2)
	assert.Equal(t, 1, summary.Items[0].SequenceNumber)
	assert.Equal(t, 2, summary.Items[1].SequenceNumber)

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/session/run", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		active, ok := ts.sessions.Current()
		if !ok {
			return false
		}
		s := active.Pipeline.Status()
		return !s.Running && s.Completed == 2
	}, 5*time.Second, 20*time.Millisecond)

	_, err := os.Stat(filepath.Join(ts.products.Dir, "7791234.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(ts.products.Dir, "7791234(1).png"))
	assert.NoError(t, err)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/session/photos/0", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = postFile(t, ts.URL+"/api/session/photos", "late.png", pngImage(t), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	photo := decode[pipeline.CapturedPhoto](t, resp)
	assert.Equal(t, 3, photo.SequenceNumber)

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/session/run", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		active, ok := ts.sessions.Current()
		if !ok {
			return false
		}
		s := active.Pipeline.Status()
		return !s.Running && s.Completed == 3
	}, 5*time.Second, 20*time.Millisecond)
	_, err = os.Stat(filepath.Join(ts.products.Dir, "7791234(2).png"))
	assert.NoError(t, err)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStartSessionRejectsBadCode(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/session", bytes.NewBufferString(`{"product_code":""}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/session", bytes.NewBufferString(`{`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAddPhotoRejectsUndecodableCapture(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/session", bytes.NewBufferString(`{"product_code":"7791234"}`))
	resp.Body.Close()

	body, contentType := multipartBody(t, "frame.png", []byte("\x89PNG\r\n\x1a\ntruncated"), nil)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/session/photos", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestScan(t *testing.T) {
	ts := newTestServer(t, fakeScanner{code: "4006381333931"})
	resp := postFile(t, ts.URL+"/api/scan", "label.png", pngImage(t), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]string](t, resp)
	assert.Equal(t, "4006381333931", out["product_code"])

	ts = newTestServer(t, fakeScanner{err: barcode.ErrScanNotFound})
	resp = postFile(t, ts.URL+"/api/scan", "label.png", pngImage(t), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	ts = newTestServer(t, fakeScanner{err: errors.New("GEMINI_API_KEY environment variable not set")})
	resp = postFile(t, ts.URL+"/api/scan", "label.png", pngImage(t), nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	ts = newTestServer(t, nil)
	resp = postFile(t, ts.URL+"/api/scan", "label.png", pngImage(t), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

// gateSink holds every Put until the gate is closed.
type gateSink struct {
	gate chan struct{}
}

func (g gateSink) Put(_ context.Context, filename string, _ []byte) (string, error) {
	<-g.gate
	return "/uploads/products/" + filename, nil
}

func TestConcurrentRunRequestsStartOneRun(t *testing.T) {
	root := t.TempDir()
	products, err := storage.NewProductStore(filepath.Join(root, "products"))
	require.NoError(t, err)

	sink := gateSink{gate: make(chan struct{})}
	sessions := storage.New(func(session models.ProductSession) *pipeline.Pipeline {
		return pipeline.New(session, pipeline.Deps{
			Remover:    removal.Passthrough{},
			Compositor: compositor.New(),
			Sink:       sink,
		})
	})
	server := httptest.NewServer(New(Options{
		Sessions:   sessions,
		Products:   products,
		CaptureDir: filepath.Join(root, "captures"),
	}).Routes())
	defer server.Close()

	resp := doRequest(t, http.MethodPost, server.URL+"/api/session", bytes.NewBufferString(`{"product_code":"7791234"}`))
	resp.Body.Close()
	resp = postFile(t, server.URL+"/api/session/photos", "frame.png", pngImage(t), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	const requests = 8
	codes := make(chan int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, server.URL+"/api/session/run", nil)
			if err != nil {
				codes <- 0
				return
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	close(sink.gate)

	counts := map[int]int{}
	for code := range codes {
		counts[code]++
	}
	assert.Equal(t, 1, counts[http.StatusAccepted])
	assert.Equal(t, requests-1, counts[http.StatusConflict])

	active, ok := sessions.Current()
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		s := active.Pipeline.Status()
		return !s.Running && s.Completed == 1
	}, 5*time.Second, 20*time.Millisecond)
}
