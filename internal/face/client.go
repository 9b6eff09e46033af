package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"facescan-backend/internal/facematch"
)

// Encoder: 画像 → 128 次元ベクトルの変換を担う外部サービス。
// ここでは既にエンコード済みのベクトルしか扱わないのが原則で、
// 画像経路はこのクライアント経由で同じ照合ロジックに合流させる。
type Encoder interface {
	Encode(ctx context.Context, filename string, image []byte) (facematch.Descriptor, error)
}

type EncoderClient struct {
	baseURL string
	http    *http.Client
}

func NewEncoderClient(baseURL string, timeout time.Duration) *EncoderClient {
	return &EncoderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type encodeResponse struct {
	OK      bool      `json:"ok"`
	Vector  []float64 `json:"vector"`
	Message string    `json:"message"`
}

// Encode: multipart で画像を渡してベクトルを受け取る。
// 失敗はそのまま UPSTREAM として呼び出し元に返す（リトライしない。
// 撮り直しはユーザ操作であって障害復旧ではないため）。
func (c *EncoderClient) Encode(ctx context.Context, filename string, image []byte) (facematch.Descriptor, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/encode", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.http.Do(req)
	if err != nil {
		return nil, ErrUpstream(fmt.Sprintf("encoder unreachable: %v", err))
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, ErrUpstream(fmt.Sprintf("encoder response read failed: %v", err))
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// upstream の詳細は削らずに返す
		return nil, ErrUpstream(fmt.Sprintf("encoder returned %d: %s", res.StatusCode, strings.TrimSpace(string(raw))))
	}

	var parsed encodeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, ErrUpstream(fmt.Sprintf("encoder returned malformed json: %v", err))
	}
	if !parsed.OK {
		return nil, ErrUpstream("encoder rejected image: " + parsed.Message)
	}
	return facematch.Descriptor(parsed.Vector), nil
}
