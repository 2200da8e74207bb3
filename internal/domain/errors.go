package domain

import "errors"

var (
	// ErrCredentialNotFound signals that neither a user-specific nor a
	// default OAuth credential exists for the requested provider.
	ErrCredentialNotFound = errors.New("no OAuth credentials found")
	// ErrReauthRequired signals that the stored refresh token was rejected
	// by the provider; the credential row has been removed and the user
	// must reconnect the account.
	ErrReauthRequired = errors.New("account must be reconnected")
	// ErrJobNotFound signals that no job matched the requested title or id.
	ErrJobNotFound = errors.New("job not found")
	// ErrApplicationNotFound signals a missing application record.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrUserNotFound signals a missing user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttachmentNotFound signals a missing stored attachment.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrNoPendingApplications signals an empty shortlist-send batch.
	ErrNoPendingApplications = errors.New("no unsent shortlisted applications found")
	// ErrAlreadySent rejects shortlist changes on applications that were
	// already included in a digest. sentAt is a terminal marker.
	ErrAlreadySent = errors.New("application already sent")
	// ErrAccountInUse rejects connecting a mailbox that is bound to a
	// different user.
	ErrAccountInUse = errors.New("this account is already connected to another user")
	// ErrUnsupportedProvider rejects provider names outside {microsoft, gmail}.
	ErrUnsupportedProvider = errors.New("unsupported mail provider")
	// ErrInvalidState signals an unknown or expired OAuth state token.
	ErrInvalidState = errors.New("invalid or expired OAuth state")
)
