package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrichat/internal/pkg/errs"
)

func TestValidateFileSize(t *testing.T) {
	assert.Nil(t, ValidateFileSize(1))
	assert.Nil(t, ValidateFileSize(MaxAttachmentSize))

	err := ValidateFileSize(0)
	require.NotNil(t, err)
	assert.Equal(t, errs.ErrInvalidParams, err.Code)

	err = ValidateFileSize(MaxAttachmentSize + 1)
	require.NotNil(t, err)
	assert.Equal(t, errs.ErrFileSizeTooLarge, err.Code)
}

func TestValidateFileType(t *testing.T) {
	assert.Nil(t, ValidateFileType("photo.png", "image/png"))
	assert.Nil(t, ValidateFileType("photo.JPG", "IMAGE/JPEG"))

	// disallowed MIME type
	assert.NotNil(t, ValidateFileType("doc.pdf", "application/pdf"))

	// extension and MIME type disagree
	assert.NotNil(t, ValidateFileType("photo.png", "image/jpeg"))

	// missing or unknown extension
	assert.NotNil(t, ValidateFileType("photo", "image/png"))
	assert.NotNil(t, ValidateFileType("photo.bmp", "image/png"))
}

func TestAttachmentKeyPrefix(t *testing.T) {
	assert.Equal(t, "chat/conv-1/", AttachmentKeyPrefix("conv-1"))
}

func TestConversationFromKey(t *testing.T) {
	id, ok := ConversationFromKey("chat/conv-1/abc.png")
	require.True(t, ok)
	assert.Equal(t, "conv-1", id)

	_, ok = ConversationFromKey("other/conv-1/abc.png")
	assert.False(t, ok)

	_, ok = ConversationFromKey("chat/conv-1/")
	assert.False(t, ok)

	_, ok = ConversationFromKey("chat/abc.png")
	assert.False(t, ok)
}
