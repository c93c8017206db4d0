package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/chtzvt/dropslurp/internal/compression"
	"github.com/chtzvt/dropslurp/internal/secrets"
)

// BlockBlobAPI is the slice of *azblob.Client the sink needs (for testing).
type BlockBlobAPI interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

type AzureBlobSink struct {
	account     string
	container   string
	prefix      string
	compression string
	serviceURL  string
	keySecret   string
	secrets     *secrets.Store
	client      BlockBlobAPI // test only
}

func NewAzureBlobSink(opts map[string]interface{}, store *secrets.Store) (Sink, error) {
	account := optString(opts, "account")
	container := optString(opts, "container")
	if account == "" || container == "" {
		return nil, fmt.Errorf("azureblob sink requires 'account' and 'container' options")
	}
	comp := optCompression(opts)
	if _, err := compression.NewWriter(io.Discard, comp); err != nil {
		return nil, err
	}
	serviceURL := optString(opts, "service_url")
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	}
	keySecret := optString(opts, "key_secret")
	if keySecret == "" {
		keySecret = "AZURE_STORAGE_KEY"
	}
	return &AzureBlobSink{
		account:     account,
		container:   container,
		prefix:      optString(opts, "prefix"),
		compression: comp,
		serviceURL:  serviceURL,
		keySecret:   keySecret,
		secrets:     store,
	}, nil
}

func (a *AzureBlobSink) newClient(ctx context.Context) (BlockBlobAPI, error) {
	key, err := a.secrets.Get(ctx, a.keySecret)
	if err != nil {
		return nil, fmt.Errorf("missing %s in secrets: %w", a.keySecret, err)
	}
	cred, err := azblob.NewSharedKeyCredential(a.account, string(key))
	if err != nil {
		return nil, fmt.Errorf("azure shared key credential error: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(a.serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client init error: %w", err)
	}
	return client, nil
}

func (a *AzureBlobSink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	client := a.client
	if client == nil {
		var err error
		if client, err = a.newClient(ctx); err != nil {
			return nil, err
		}
	}

	blobName := a.prefix + name
	return pipeUpload(a.compression, func(body io.Reader) error {
		if _, err := client.UploadStream(ctx, a.container, blobName, body, nil); err != nil {
			return fmt.Errorf("azure upload %s/%s: %w", a.container, blobName, err)
		}
		return nil
	})
}

func init() {
	Register("azureblob", NewAzureBlobSink)
}
