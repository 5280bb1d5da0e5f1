package sink

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	key         string
	data        []byte
	contentType string
}

type fakeObjects struct {
	err     error
	uploads []upload
}

func (o *fakeObjects) UploadBytes(_ context.Context, key string, data []byte, contentType string) error {
	if o.err != nil {
		return o.err
	}
	o.uploads = append(o.uploads, upload{key: key, data: bytes.Clone(data), contentType: contentType})

	return nil
}

type fakePublisher struct {
	err      error
	messages []entity.StreamMessage
}

func (p *fakePublisher) Publish(_ context.Context, messages ...entity.StreamMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, messages...)

	return nil
}

func (p *fakePublisher) Close() error { return nil }

func fixedClock(uc *SinkUseCase) {
	uc.now = func() time.Time { return time.Date(2026, 3, 7, 14, 5, 0, 0, time.UTC) }
}

func TestStore_WritesOkRecordsAsJSONLines(t *testing.T) {
	objects := &fakeObjects{}
	uc := New(objects, nil, "transformed")
	fixedClock(uc)

	err := uc.Store(context.Background(), []entity.TransformedRecord{
		entity.OkRecord("r1", []byte(`{"user_id":"p1"}`)),
		entity.FailedRecord("r2"),
		entity.OkRecord("r3", []byte(`{"user_id":"p3"}`)),
	})
	require.NoError(t, err)

	require.Len(t, objects.uploads, 1)
	up := objects.uploads[0]
	assert.Regexp(t, regexp.MustCompile(`^transformed/2026/03/07/14/[0-9a-f-]{36}\.jsonl$`), up.key)
	assert.Equal(t, "{\"user_id\":\"p1\"}\n{\"user_id\":\"p3\"}\n", string(up.data))
	assert.Equal(t, contentTypeJSONLines, up.contentType)
}

func TestStore_NothingOk(t *testing.T) {
	objects := &fakeObjects{}
	pub := &fakePublisher{}
	uc := New(objects, pub, "transformed")

	require.NoError(t, uc.Store(context.Background(), []entity.TransformedRecord{entity.FailedRecord("r1")}))
	require.NoError(t, uc.Store(context.Background(), nil))

	assert.Empty(t, objects.uploads)
	assert.Empty(t, pub.messages)
}

func TestStore_PublishesKeyedByPseudonym(t *testing.T) {
	pub := &fakePublisher{}
	uc := New(&fakeObjects{}, pub, "transformed")

	err := uc.Store(context.Background(), []entity.TransformedRecord{
		entity.OkRecord("r1", []byte(`{"user_id":"p1","x":1}`)),
	})
	require.NoError(t, err)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "p1", pub.messages[0].Key)
	assert.Equal(t, "r1", pub.messages[0].Headers["record_id"])
}

func TestStore_UploadFailureSkipsPublish(t *testing.T) {
	cause := errors.New("bucket gone")
	pub := &fakePublisher{}
	uc := New(&fakeObjects{err: cause}, pub, "transformed")

	err := uc.Store(context.Background(), []entity.TransformedRecord{entity.OkRecord("r1", []byte(`{"user_id":"p1"}`))})
	require.ErrorIs(t, err, cause)
	assert.Empty(t, pub.messages)
}

func TestStore_PublishFailure(t *testing.T) {
	cause := errors.New("broker down")
	uc := New(&fakeObjects{}, &fakePublisher{err: cause}, "transformed")

	err := uc.Store(context.Background(), []entity.TransformedRecord{entity.OkRecord("r1", []byte(`{"user_id":"p1"}`))})
	require.ErrorIs(t, err, cause)
}
