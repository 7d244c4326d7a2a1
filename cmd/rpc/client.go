package rpc

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	limiter "github.com/mxk/go-flowrate/flowrate"
)

// uploadFormField is the multipart form field every uploaded file is sent under
const uploadFormField = "file"

type Client struct {
	rpcURL     string
	uploadRate int64 // bytes per second, 0 is unlimited
	client     http.Client
}

func NewClient(rpcURL string, uploadRate int64) *Client {
	return &Client{rpcURL: strings.TrimSuffix(rpcURL, "/"), uploadRate: uploadRate, client: http.Client{}}
}

func (c *Client) Version() (version *string, err lib.ErrorI) {
	version = new(string)
	err = c.get(VersionRouteName, "", version)
	return
}

func (c *Client) Status() (p *StatusResponse, err lib.ErrorI) {
	p = new(StatusResponse)
	err = c.get(StatusRouteName, "", p)
	return
}

func (c *Client) ResourceUsage() (p *ResourceUsageResponse, err lib.ErrorI) {
	p = new(ResourceUsageResponse)
	err = c.get(ResourceUsageRouteName, "", p)
	return
}

// File downloads the raw content of the file at index
func (c *Client) File(index uint64) ([]byte, lib.ErrorI) {
	return c.getBytes(FileRouteName, strconv.FormatUint(index, 10))
}

// Proof downloads the inclusion proof of the file at index
func (c *Client) Proof(index uint64) (merkle.Proof, lib.ErrorI) {
	bz, err := c.getBytes(ProofRouteName, strconv.FormatUint(index, 10))
	if err != nil {
		return nil, err
	}
	return merkle.ProofFromBytes(bz)
}

// Root downloads the committed root
func (c *Client) Root() (merkle.Digest, lib.ErrorI) {
	bz, err := c.getBytes(RootRouteName, "")
	if err != nil {
		return merkle.Digest{}, err
	}
	return merkle.NewDigest(bz)
}

// Upload sends a single file under index
func (c *Client) Upload(index uint64, r io.Reader) ([]uint64, lib.ErrorI) {
	return c.upload(func(mw *multipart.Writer) lib.ErrorI {
		return c.writePart(mw, index, r)
	})
}

// UploadFiles sends each file in its own request, the file at position i is stored under index i
// The server's body limit and request timeout apply per file, not to the whole directory
func (c *Client) UploadFiles(paths []string) (indices []uint64, err lib.ErrorI) {
	indices = make([]uint64, 0, len(paths))
	for i, path := range paths {
		stored, er := c.uploadFile(uint64(i), path)
		if er != nil {
			return indices, er
		}
		indices = append(indices, stored...)
	}
	return
}

func (c *Client) uploadFile(index uint64, path string) ([]uint64, lib.ErrorI) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lib.ErrReadFile(err)
	}
	defer func() { _ = f.Close() }()
	return c.Upload(index, f)
}

// upload streams the multipart body produced by writeParts without buffering it
func (c *Client) upload(writeParts func(mw *multipart.Writer) lib.ErrorI) ([]uint64, lib.ErrorI) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	writeErr := make(chan lib.ErrorI, 1)
	go func() {
		err := writeParts(mw)
		if err == nil {
			if e := mw.Close(); e != nil {
				err = ErrUploadSourceRead(e)
			}
		}
		writeErr <- err
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()
	resp, err := c.client.Post(c.url(UploadRouteName, ""), mw.FormDataContentType(), pr)
	// unblock the writer if the request ended early
	_ = pr.Close()
	sourceErr := <-writeErr
	if err != nil {
		if sourceErr != nil {
			return nil, sourceErr
		}
		return nil, ErrPostRequest(err)
	}
	// a rejection by the server takes precedence over the closed pipe it causes
	response := new(uploadResponse)
	if er := c.unmarshal(resp, response); er != nil {
		return nil, er
	}
	if sourceErr != nil {
		return nil, sourceErr
	}
	return response.Indices, nil
}

// writePart copies r into a new form file named by index, throttled to the upload rate
func (c *Client) writePart(mw *multipart.Writer, index uint64, r io.Reader) lib.ErrorI {
	part, err := mw.CreateFormFile(uploadFormField, strconv.FormatUint(index, 10))
	if err != nil {
		return ErrUploadSourceRead(err)
	}
	if c.uploadRate > 0 {
		r = limiter.NewReader(r, c.uploadRate)
	}
	if _, err = io.Copy(part, r); err != nil {
		return ErrUploadSourceRead(err)
	}
	return nil
}

func (c *Client) get(routeName, param string, ptr any) lib.ErrorI {
	bz, err := c.getBytes(routeName, param)
	if err != nil {
		return err
	}
	return lib.UnmarshalJSON(bz, ptr)
}

func (c *Client) getBytes(routeName, param string) ([]byte, lib.ErrorI) {
	resp, err := c.client.Get(c.url(routeName, param))
	if err != nil {
		return nil, ErrGetRequest(err)
	}
	return c.readBody(resp)
}

func (c *Client) unmarshal(resp *http.Response, ptr any) lib.ErrorI {
	bz, err := c.readBody(resp)
	if err != nil {
		return err
	}
	return lib.UnmarshalJSON(bz, ptr)
}

func (c *Client) readBody(resp *http.Response) ([]byte, lib.ErrorI) {
	defer func() { _ = resp.Body.Close() }()
	bz, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrReadBody(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ErrHttpStatus(resp.Status, resp.StatusCode, bz)
	}
	return bz, nil
}

// url fills the ':index' parameter of the route path with param
func (c *Client) url(routeName, param string) string {
	path := routePaths[routeName].Path
	if param != "" {
		path = strings.Replace(path, colon+indexParamName, param, 1)
	}
	return c.rpcURL + path
}
