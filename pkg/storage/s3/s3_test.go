package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/pkg/logger"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func keyIs(key string) interface{} {
	return mock.MatchedBy(func(in interface{}) bool {
		switch v := in.(type) {
		case *s3.PutObjectInput:
			return aws.ToString(v.Key) == key
		case *s3.GetObjectInput:
			return aws.ToString(v.Key) == key
		case *s3.DeleteObjectInput:
			return aws.ToString(v.Key) == key
		}
		return false
	})
}

func TestStoreAndGet(t *testing.T) {
	api := new(mockAPI)
	api.On("PutObject", mock.Anything, keyIs("uploads/1/a.txt")).Return(&s3.PutObjectOutput{}, nil)
	api.On("GetObject", mock.Anything, keyIs("uploads/1/a.txt")).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil)

	store := New(api, "docs", logger.NewNop())
	key, err := store.Store(context.Background(), strings.NewReader("hello"), "uploads/1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "uploads/1/a.txt", key)

	rc, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(body))
	api.AssertExpectations(t)
}

func TestStoreError(t *testing.T) {
	api := new(mockAPI)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	_, err := New(api, "docs", logger.NewNop()).Store(context.Background(), strings.NewReader("x"), "k")
	assert.ErrorContains(t, err, "failed to store file")
}

func TestCleanupBefore(t *testing.T) {
	now := time.Now()
	api := new(mockAPI)
	api.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("old"), LastModified: aws.Time(now.Add(-48 * time.Hour))},
			{Key: aws.String("fresh"), LastModified: aws.Time(now)},
		},
	}, nil).Once()
	api.On("DeleteObject", mock.Anything, keyIs("old")).Return(&s3.DeleteObjectOutput{}, nil).Once()

	err := New(api, "docs", logger.NewNop()).CleanupBefore(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "DeleteObject", mock.Anything, keyIs("fresh"))
}
