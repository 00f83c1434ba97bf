package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"mime"
)

func newGzipReader(r io.Reader) (io.Reader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr, nil
}

func newDeflateReader(r io.Reader) io.Reader {
	return flate.NewReader(r)
}

func parseMediaType(contentType string) (string, map[string]string, error) {
	return mime.ParseMediaType(contentType)
}
