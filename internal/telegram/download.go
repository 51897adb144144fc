package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MaxDownloadSize is the Bot API limit for getFile downloads.
const MaxDownloadSize = 20 << 20

const fileDownloadTimeout = 30 * time.Second

// ErrFileTooLarge is returned for files above MaxDownloadSize.
var ErrFileTooLarge = errors.New("file exceeds download limit")

// FileGetter is the part of *bot.Bot used to resolve file IDs.
type FileGetter interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// DownloadFile fetches the file behind fileID. It returns the data and the
// base name of the file path Telegram reports.
func DownloadFile(ctx context.Context, g FileGetter, client *http.Client, fileID string) (data []byte, name string, err error) {
	if fileID == "" {
		return nil, "", fmt.Errorf("empty fileID provided")
	}
	if client == nil {
		client = http.DefaultClient
	}

	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	file, err := g.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("empty file path returned from Telegram")
	}
	if file.FileSize > MaxDownloadSize {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.FileSize)
	}

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, g.FileDownloadLink(file), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, "", ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("received empty file data")
	}
	return data, path.Base(file.FilePath), nil
}
