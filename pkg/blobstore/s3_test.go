package blobstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestHasErrorCode(t *testing.T) {
	precondition := &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}

	assert.True(t, hasErrorCode(precondition, "PreconditionFailed", "ConditionalRequestConflict"))
	assert.True(t, hasErrorCode(fmt.Errorf("operation error S3: PutObject: %w", precondition), "PreconditionFailed"))
	assert.False(t, hasErrorCode(precondition, "NoSuchKey"))
	assert.False(t, hasErrorCode(errors.New("connection reset"), "NoSuchKey"))
}
