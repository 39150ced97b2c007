// Package storage uploads generated media to S3-compatible object storage.
//
// Compute jobs may return their result inline as base64 bytes. Those bytes
// are stored here and the returned URL becomes the job's result reference,
// which the delivery path then sends as a photo.
//
//	s, err := storage.New(storage.Config{
//		Bucket:    "media",
//		AccessKey: os.Getenv("S3_ACCESS_KEY"),
//		SecretKey: os.Getenv("S3_SECRET_KEY"),
//		PublicURL: "https://cdn.example.com",
//	})
//	info, err := storage.PutBase64(ctx, s, payload, storage.WithPrefix("results"))
//	url, err := s.URL(ctx, info.Key)
//
// MemoryStorage implements the same interface in process and is used in
// tests and when no bucket is configured.
//
// Content type is detected from magic bytes unless WithContentType is given.
// WithAccept rejects other types with ErrUnsupportedType before anything is
// uploaded. Keys are {prefix}/{uuid}{ext}.
package storage
