package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectAPI struct {
	mock.Mock
}

func (m *mockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *mockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func TestS3Client_Upload(t *testing.T) {
	api := new(mockObjectAPI)
	client := NewS3ClientWithAPI(api, S3Config{Bucket: "chat", Region: "ap-northeast-2", BasePath: "/messenger/"})

	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "chat" &&
			aws.ToString(in.Key) == "messenger/c1/202603/a b.png" &&
			aws.ToString(in.ContentType) == "image/png"
	})).Return(nil).Once()

	url, err := client.Upload(context.Background(), "c1/202603/a b.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.s3.ap-northeast-2.amazonaws.com/messenger/c1/202603/a%20b.png", url)
	api.AssertExpectations(t)
}

func TestS3Client_UploadError(t *testing.T) {
	api := new(mockObjectAPI)
	client := NewS3ClientWithAPI(api, S3Config{Bucket: "chat"})
	api.On("PutObject", mock.Anything, mock.Anything).Return(errors.New("access denied"))

	_, err := client.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain")
	assert.ErrorContains(t, err, "access denied")
}

func TestS3Client_Delete(t *testing.T) {
	api := new(mockObjectAPI)
	client := NewS3ClientWithAPI(api, S3Config{Bucket: "chat", BasePath: "messenger"})
	api.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "messenger/c1/x.txt"
	})).Return(nil).Once()

	require.NoError(t, client.Delete(context.Background(), "c1/x.txt"))
	api.AssertExpectations(t)
}

func TestS3Client_URL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"cdn", S3Config{Bucket: "chat", PublicURL: "https://cdn.example.com/"}, "https://cdn.example.com/k/a.png"},
		{"path style", S3Config{Bucket: "chat", Endpoint: "http://minio:9000", ForcePathStyle: true}, "http://minio:9000/chat/k/a.png"},
		{"virtual host", S3Config{Bucket: "chat", Endpoint: "https://r2.example.com"}, "https://chat.r2.example.com/k/a.png"},
		{"aws", S3Config{Bucket: "chat", Region: "us-east-1"}, "https://chat.s3.us-east-1.amazonaws.com/k/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewS3ClientWithAPI(nil, tt.cfg).URL("k/a.png"))
		})
	}
}
