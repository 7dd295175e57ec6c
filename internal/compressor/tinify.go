package compressor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"tinyimg/internal/logger"
)

const maxResponseBody = 1 << 20

// Stager hands out files in the temporary storage area.
type Stager interface {
	Stage(baseName string) (*os.File, error)
}

// TinifyOptions configures a TinifyCompressor.
type TinifyOptions struct {
	Endpoint   string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
	Stager     Stager
	Logger     logrus.FieldLogger
}

// TinifyCompressor uploads raster images to the Tinify shrink API and
// downloads the optimized result.
type TinifyCompressor struct {
	endpoint  string
	apiKey    string
	userAgent string
	client    *http.Client
	stager    Stager
	logger    logrus.FieldLogger
}

type shrinkResponse struct {
	Input struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
	} `json:"input"`
	Output struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"output"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewTinifyCompressor returns a TinifyCompressor. An API key and a stager are required.
func NewTinifyCompressor(opts TinifyOptions) (*TinifyCompressor, error) {
	if opts.APIKey == "" {
		return nil, errors.New("tinify: API key is required")
	}
	if opts.Endpoint == "" {
		return nil, errors.New("tinify: endpoint is required")
	}
	if opts.Stager == nil {
		return nil, errors.New("tinify: stager is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &TinifyCompressor{
		endpoint:  opts.Endpoint,
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		client:    opts.HTTPClient,
		stager:    opts.Stager,
		logger:    opts.Logger,
	}, nil
}

// Compress uploads path and returns the optimized bytes when the service
// produced a strictly smaller image.
func (c *TinifyCompressor) Compress(ctx context.Context, path string) CompressionResult {
	log := logger.WithFileOperation(c.logger, path, "shrink")

	original, err := os.ReadFile(path)
	if err != nil {
		return failed(path, NewError(KindLocalRead, path, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(original))
	if err != nil {
		return failed(path, NewError(KindTransport, path, err))
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/octet-stream")

	log.Debugf("Uploading %d bytes", len(original))
	resp, err := c.client.Do(req)
	if err != nil {
		return failed(path, transportError(ctx, path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return failed(path, transportError(ctx, path, err))
	}

	count, _ := strconv.Atoi(resp.Header.Get("Compression-Count"))

	var shrink shrinkResponse
	parseErr := json.Unmarshal(body, &shrink)
	if parseErr != nil {
		log.WithField("status", resp.StatusCode).Warnf("Unparseable response body: %v", parseErr)
	}

	if resp.StatusCode != http.StatusCreated {
		res := failed(path, rejection(path, resp.StatusCode, shrink, parseErr))
		res.CompressionCount = count
		return res
	}

	if parseErr != nil {
		res := failed(path, NewError(KindProtocol, path, parseErr))
		res.CompressionCount = count
		return res
	}
	if shrink.Input.Size <= 0 || shrink.Output.URL == "" {
		res := failed(path, &Error{Kind: KindProtocol, Path: path, Message: "unexpected response: missing sizes or output url"})
		res.CompressionCount = count
		return res
	}

	result := CompressionResult{
		Path:             path,
		OriginalSize:     shrink.Input.Size,
		OptimizedSize:    shrink.Output.Size,
		CompressionCount: count,
	}

	if shrink.Output.Size >= shrink.Input.Size {
		log.Debug("Service reported no improvement")
		result.Status = StatusUnchanged
		return result
	}

	data, err := c.download(ctx, shrink.Output.URL, filepath.Base(path))
	if err != nil {
		res := failed(path, err)
		res.CompressionCount = count
		return res
	}

	if len(data) >= len(original) {
		log.Warnf("Downloaded payload (%d bytes) is not smaller than the original (%d bytes)", len(data), len(original))
		result.Status = StatusUnchanged
		return result
	}

	result.Status = StatusOptimized
	result.Data = data
	return result
}

// download fetches url into a staged file and reads it back.
func (c *TinifyCompressor) download(ctx context.Context, url, baseName string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "download failed", Err: err}
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindTransport, Message: fmt.Sprintf("download failed: HTTP %d", resp.StatusCode)}
	}

	staged, err := c.stager.Stage(baseName)
	if err != nil {
		return nil, NewError(KindLocalWrite, baseName, err)
	}
	if _, err := io.Copy(staged, resp.Body); err != nil {
		_ = staged.Close()
		return nil, &Error{Kind: KindTransport, Message: "download failed", Err: err}
	}
	if err := staged.Close(); err != nil {
		return nil, NewError(KindLocalWrite, staged.Name(), err)
	}

	data, err := os.ReadFile(staged.Name())
	if err != nil {
		return nil, NewError(KindLocalRead, staged.Name(), err)
	}
	return data, nil
}

func (c *TinifyCompressor) decorate(req *http.Request) {
	req.SetBasicAuth("api", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// rejection maps a non-201 response to an error.
func rejection(path string, status int, shrink shrinkResponse, parseErr error) error {
	if parseErr != nil {
		return &Error{
			Kind:    KindProtocol,
			Path:    path,
			Message: fmt.Sprintf("unexpected response (HTTP %d)", status),
			Err:     parseErr,
		}
	}

	switch shrink.Error {
	case "TooManyRequests":
		return NewError(KindQuotaExceeded, path, nil)
	case "Unauthorized":
		return NewError(KindAuth, path, nil)
	}

	msg := shrink.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	return &Error{Kind: KindRemoteRejected, Path: path, Message: msg}
}

// transportError distinguishes cancellation and a connection that closed
// without any response from other transport failures.
func transportError(ctx context.Context, path string, err error) error {
	switch {
	case ctx.Err() != nil:
		return NewError(KindCancelled, path, ctx.Err())
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return NewError(KindNoResponse, path, err)
	default:
		return NewError(KindTransport, path, err)
	}
}
