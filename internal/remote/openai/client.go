package openai

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/imroc/req/v3"

	"github.com/studio1767/filesync/internal/remote"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	filesPath = "/files"
	filePath  = "/files/{file_id}"

	listPageSize = 10000
)

// Client talks to the OpenAI files and vector store endpoints.
type Client struct {
	client *req.Client
}

// NewClient creates a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonBearerAuthToken(apiKey).
		SetUserAgent("filesync").
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(1*time.Second, 10*time.Second).
		SetCommonRetryCondition(retryable).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{client: client}, nil
}

// retry transport failures, rate limits and server errors
func retryable(resp *req.Response, err error) bool {
	if err != nil {
		return true
	}
	code := resp.GetStatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// SetRetry overrides the retry policy; a count of zero disables retries.
func (c *Client) SetRetry(count int, min, max time.Duration) *Client {
	c.client.SetCommonRetryCount(count).SetCommonRetryBackoffInterval(min, max)
	return c
}

type fileObject struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
}

func (f *fileObject) toObject() remote.Object {
	return remote.Object{
		ID:        f.ID,
		Name:      f.Filename,
		Size:      f.Bytes,
		CreatedAt: time.Unix(f.CreatedAt, 0).UTC(),
	}
}

type fileList struct {
	Data    []fileObject `json:"data"`
	HasMore bool         `json:"has_more"`
	LastID  string       `json:"last_id"`
}

type deleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// uploadFile sends one file to the files endpoint under the given purpose.
// A 400 response is only reported as a RejectedError when rejectBadRequest
// is set; otherwise it stays a transient remote.Error.
func (c *Client) uploadFile(ctx context.Context, path, name, purpose string, rejectBadRequest bool) (*fileObject, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}

	var out fileObject
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"purpose": purpose}).
		SetFileUpload(req.FileUpload{
			ParamName: "file",
			FileName:  name,
			GetFileContent: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
			FileSize:    info.Size(),
			ContentType: contentType,
		}).
		SetSuccessResult(&out).
		Post(filesPath)

	if err := handleAPIError(resp, err, "upload", name, rejectBadRequest); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &remote.Error{Op: "upload", Err: errNoID}
	}

	return &out, nil
}

func (c *Client) deleteFile(ctx context.Context, id string) error {
	var out deleted
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("file_id", id).
		SetSuccessResult(&out).
		Delete(filePath)

	return handleAPIError(resp, err, "delete", id, false)
}

// listFiles pages through the files with the given purpose, newest first.
func (c *Client) listFiles(ctx context.Context, purpose string, fn func([]remote.Object) error) error {
	after := ""
	for {
		var page fileList
		r := c.client.R().
			SetContext(ctx).
			SetQueryParam("purpose", purpose).
			SetQueryParam("order", "desc").
			SetQueryParam("limit", strconv.Itoa(listPageSize)).
			SetSuccessResult(&page)
		if after != "" {
			r.SetQueryParam("after", after)
		}

		resp, err := r.Get(filesPath)
		if err := handleAPIError(resp, err, "list", "", false); err != nil {
			return err
		}

		objects := make([]remote.Object, 0, len(page.Data))
		for i := range page.Data {
			objects = append(objects, page.Data[i].toObject())
		}
		if err := fn(objects); err != nil {
			return err
		}

		if !page.HasMore || len(page.Data) == 0 {
			return nil
		}
		after = page.Data[len(page.Data)-1].ID
	}
}
