package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/clipq-go/internal/domain"
)

type fakeYoutube struct {
	video    *youtube.Video
	videoErr error
	payload  []byte
	size     int64
	picked   *youtube.Format
}

func (f *fakeYoutube) GetVideoContext(ctx context.Context, url string) (*youtube.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.video, nil
}

func (f *fakeYoutube) GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	f.picked = format
	return io.NopCloser(bytes.NewReader(f.payload)), f.size, nil
}

func sampleFormats() youtube.FormatList {
	return youtube.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", Bitrate: 500, Width: 640, Height: 360, AudioChannels: 2, ContentLength: 1000},
		{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, QualityLabel: "720p", Bitrate: 1500, Width: 1280, Height: 720, AudioChannels: 2},
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, QualityLabel: "1080p", Bitrate: 4000, Width: 1920, Height: 1080},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 128, AudioChannels: 2, ContentLength: 300},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160, AudioChannels: 2},
	}
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		selector string
		itag     int
	}{
		{"", 22},
		{"best", 22},
		{"bestaudio", 251},
		{"audio", 251},
		{"137", 137},
		{"360p", 18},
		{"1080P", 137},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			f, err := selectFormat(sampleFormats(), tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.itag, f.ItagNo)
		})
	}

	_, err := selectFormat(sampleFormats(), "4320p")
	assert.ErrorIs(t, err, domain.ErrExtractionError)
}

func TestMimeToExt(t *testing.T) {
	assert.Equal(t, "mp4", mimeToExt(`video/mp4; codecs="avc1"`))
	assert.Equal(t, "webm", mimeToExt("audio/webm"))
	assert.Equal(t, "3gp", mimeToExt("video/3gpp"))
	assert.Equal(t, "mp3", mimeToExt("audio/mpeg"))
	assert.Equal(t, "bin", mimeToExt("garbage"))
}

func TestLibraryExtractor_Resolve(t *testing.T) {
	client := &fakeYoutube{video: &youtube.Video{
		Title:      "My: Clip",
		Formats:    sampleFormats(),
		Thumbnails: youtube.Thumbnails{{URL: "https://img.example.com/small.jpg"}, {URL: "https://img.example.com/large.jpg"}},
	}}
	e := newLibraryExtractor(client, nil)
	dest := t.TempDir()

	info, err := e.Resolve(context.Background(), domain.ExtractRequest{URL: "https://youtube.com/watch?v=x", Format: "360p", DestFolder: dest})
	require.NoError(t, err)

	assert.Equal(t, "My: Clip", info.Title)
	assert.Equal(t, "https://img.example.com/large.jpg", info.ThumbnailURL)
	require.NotNil(t, info.Filesize)
	assert.Equal(t, int64(1000), *info.Filesize)
	assert.Equal(t, filepath.Join(dest, "My Clip.mp4"), info.Filename)
	assert.Len(t, info.Formats, 5)
}

func TestLibraryExtractor_ResolveFailure(t *testing.T) {
	e := newLibraryExtractor(&fakeYoutube{videoErr: errors.New("video unavailable")}, nil)

	_, err := e.Resolve(context.Background(), domain.ExtractRequest{URL: "https://youtube.com/watch?v=x"})
	assert.ErrorIs(t, err, domain.ErrExtractionError)
}

func TestLibraryExtractor_Download(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 100*1024)
	client := &fakeYoutube{
		video:   &youtube.Video{Title: "Song", Formats: sampleFormats()},
		payload: payload,
		size:    int64(len(payload)),
	}
	e := newLibraryExtractor(client, nil)
	dest := t.TempDir()
	sink := &recordingSink{}

	path, err := e.Download(context.Background(), domain.ExtractRequest{URL: "https://youtube.com/watch?v=x", Format: "bestaudio", DestFolder: dest}, sink)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "Song.webm"), path)
	assert.Equal(t, 251, client.picked.ItagNo)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, len(payload))

	require.NotEmpty(t, sink.percents)
	assert.Equal(t, 100, sink.percents[len(sink.percents)-1])
	for i := 1; i < len(sink.percents); i++ {
		assert.GreaterOrEqual(t, sink.percents[i], sink.percents[i-1])
	}
	assert.Equal(t, []string{path}, sink.filenames)
}

func TestLibraryExtractor_DownloadAborted(t *testing.T) {
	client := &fakeYoutube{
		video:   &youtube.Video{Title: "Song", Formats: sampleFormats()},
		payload: bytes.Repeat([]byte("a"), 1024),
	}
	e := newLibraryExtractor(client, nil)
	dest := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path, err := e.Download(ctx, domain.ExtractRequest{URL: "https://youtube.com/watch?v=x", DestFolder: dest}, &recordingSink{})
	assert.ErrorIs(t, err, domain.ErrAbortedByUser)
	assert.NoFileExists(t, path)
}
