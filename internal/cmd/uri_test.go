package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantErr     error
		errContains string
		want        *ObjectURI
	}{
		{
			name: "bucket root",
			uri:  "s3://my-bucket",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Prefix:   "",
			},
		},
		{
			name: "bucket with trailing slash",
			uri:  "s3://my-bucket/",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Prefix:   "",
			},
		},
		{
			name: "prefix with trailing slash",
			uri:  "s3://my-bucket/staging/tmp/",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Prefix:   "staging/tmp/",
			},
		},
		{
			name: "prefix without trailing slash is normalized",
			uri:  "s3://my-bucket/logs",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Prefix:   "logs/",
			},
		},
		{
			name: "uppercase scheme",
			uri:  "S3://my-bucket/data",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Prefix:   "data/",
			},
		},
		{
			name:        "empty URI",
			uri:         "",
			wantErr:     ErrInvalidURI,
			errContains: "empty",
		},
		{
			name:        "missing scheme",
			uri:         "my-bucket/prefix",
			wantErr:     ErrInvalidURI,
			errContains: "scheme",
		},
		{
			name:    "unsupported provider",
			uri:     "gcs://my-bucket/prefix",
			wantErr: ErrUnsupportedProvider,
		},
		{
			name:    "missing bucket",
			uri:     "s3://",
			wantErr: ErrMissingBucket,
		},
		{
			name:    "missing bucket with slash",
			uri:     "s3:///prefix",
			wantErr: ErrMissingBucket,
		},
		{
			name:    "bucket with whitespace",
			uri:     "s3://my bucket/prefix",
			wantErr: ErrInvalidURI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectURI_String(t *testing.T) {
	tests := []struct {
		name string
		uri  ObjectURI
		want string
	}{
		{
			name: "bucket root",
			uri:  ObjectURI{Provider: "s3", Bucket: "b"},
			want: "s3://b/",
		},
		{
			name: "with prefix",
			uri:  ObjectURI{Provider: "s3", Bucket: "b", Prefix: "x/y/"},
			want: "s3://b/x/y/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.uri.String())
		})
	}
}

func TestObjectURI_IsBucketRoot(t *testing.T) {
	assert.True(t, (&ObjectURI{Provider: "s3", Bucket: "b"}).IsBucketRoot())
	assert.False(t, (&ObjectURI{Provider: "s3", Bucket: "b", Prefix: "x/"}).IsBucketRoot())
}
