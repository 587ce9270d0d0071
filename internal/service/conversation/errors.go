package conversation

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller input errors.
var ErrValidation = errors.New("validation failed")

var (
	ErrNotFound = errors.New("conversation not found")

	ErrEmptyContent          = fmt.Errorf("%w: message content is required", ErrValidation)
	ErrContentTooLong        = fmt.Errorf("%w: message content exceeds %d characters", ErrValidation, MaxContentLength)
	ErrInvalidReference      = fmt.Errorf("%w: participant reference could not be resolved", ErrValidation)
	ErrInvalidStatus         = fmt.Errorf("%w: status must be active or archived", ErrValidation)
	ErrConversationClosed    = fmt.Errorf("%w: conversation is closed", ErrValidation)
	ErrNoStaffForAgency      = fmt.Errorf("%w: agency has no staff user", ErrValidation)
	ErrUnlinkedClientProfile = fmt.Errorf("%w: client profile is not linked to a user", ErrValidation)
)
