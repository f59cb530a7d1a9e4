package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidImage is returned when the image payload cannot be decoded
	ErrInvalidImage = errors.New("invalid image payload")

	// ErrImageTooLarge is returned when the image exceeds the configured size limit
	ErrImageTooLarge = errors.New("image exceeds size limit")

	// ErrUnsupportedImageType is returned when the sniffed content is not a supported image format
	ErrUnsupportedImageType = errors.New("unsupported image type")

	// ErrImageFetchFailed is returned when an image URL cannot be downloaded
	ErrImageFetchFailed = errors.New("image fetch failed")

	// ErrRecognitionFailed is returned when no recognition backend produced a usable reading
	ErrRecognitionFailed = errors.New("recognition failed")

	// ErrUnparseableReply is returned when a backend reply carries no usable structure
	ErrUnparseableReply = errors.New("unparseable backend reply")

	// ErrWeightOutOfRange is returned when a parsed weight falls outside the accepted range
	ErrWeightOutOfRange = errors.New("weight out of range")

	// ErrLowConfidence is returned when the reading confidence is below the threshold
	ErrLowConfidence = errors.New("reading confidence below threshold")

	// ErrNotFound is returned when a capture or farmer record does not exist
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable is returned when the required AI backend is not configured
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized is returned when a request carries no valid credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when credentials do not cover the requested farmer
	ErrForbidden = errors.New("forbidden")
)
