// Package storage is scratch space for uploaded audio on its way to the
// transcoder. Backends register themselves from init:
//
//	import _ "github.com/kbukum/dictation/storage/local"
//	import _ "github.com/kbukum/dictation/storage/s3"
//
//	s, err := storage.New(cfg, log)
//	path, release, err := storage.Localize(ctx, s, key)
//	defer release()
//
// Localize hands ffmpeg a real file whatever the backend.
package storage
