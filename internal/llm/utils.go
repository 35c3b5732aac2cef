package llm

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/medcards-tracker/constants"
)

// ReadImage loads a card photo from disk as a data-URL request.
func ReadImage(path string) (ImageRequest, error) {
	st, err := os.Stat(path)
	if err != nil {
		return ImageRequest{}, err
	}
	if st.IsDir() {
		return ImageRequest{}, fmt.Errorf("%s is a directory", path)
	}
	if st.Size() > int64(constants.MaxImageMB)*1024*1024 {
		return ImageRequest{}, fmt.Errorf("%s exceeds %d MB", path, constants.MaxImageMB)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ImageRequest{}, err
	}
	return ImageFromBytes(filepath.Base(path), b), nil
}

// ImageFromBytes wraps already-loaded image bytes.
func ImageFromBytes(filename string, b []byte) ImageRequest {
	u, mt := asDataURL(filename, b)
	return ImageRequest{Filename: filename, MIMEType: mt, DataURL: u}
}

func asDataURL(filename string, b []byte) (string, string) {
	mt := constants.MIMEType(filepath.Ext(filename))
	data := base64.StdEncoding.EncodeToString(b)
	return "data:" + mt + ";base64," + data, mt
}
