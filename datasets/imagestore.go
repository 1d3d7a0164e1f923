package datasets

import (
	"bytes"
	"image"
	"os"
	"sync"

	"github.com/bmatsuo/lmdb-go/lmdb"
	"github.com/pkg/errors"

	_ "image/jpeg"
	_ "image/png"
)

// imageExtensions lists the formats the directory store accepts. Decoding
// goes through image.Decode, so the jpeg and png decoders are registered
// above.
var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ImageStore provides indexed read access to an image corpus. Two
// implementations exist: DirStore for plain directories of image files and
// LMDBStore for corpora packed into a read-only LMDB environment.
type ImageStore interface {
	Len() int
	// Key returns the path (or LMDB key) identifying image i.
	Key(i int) string
	// Image decodes and returns image i.
	Image(i int) (image.Image, error)
}

// DirStore serves images from a directory tree, discovered recursively and
// sorted by path.
type DirStore struct {
	paths []string
}

var _ ImageStore = &DirStore{}

// NewDirStore lists all supported image files under root.
func NewDirStore(root string) (*DirStore, error) {
	paths, err := findFilesOfType([]string{root}, imageExtensions)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no images found under %s", root)
	}
	return &DirStore{paths: paths}, nil
}

func (s *DirStore) Len() int         { return len(s.paths) }
func (s *DirStore) Key(i int) string { return s.paths[i] }

func (s *DirStore) Image(i int) (image.Image, error) {
	path := s.paths[i]
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %s", path)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return img, nil
}

// LMDBStore serves encoded images from a read-only LMDB environment whose
// values are JPEG- or PNG-encoded bytes. Keys are scanned once at
// construction; the long-lived read handle is opened lazily on first use so
// each data-loading worker process gets its own environment.
type LMDBStore struct {
	path string
	keys []string

	once    sync.Once
	env     *lmdb.Env
	dbi     lmdb.DBI
	openErr error
}

var _ ImageStore = &LMDBStore{}

// NewLMDBStore scans the environment at path for its keys and returns a
// store reading from it.
func NewLMDBStore(path string) (*LMDBStore, error) {
	s := &LMDBStore{path: path}
	env, dbi, err := openReadonlyEnv(path)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	err = env.View(func(txn *lmdb.Txn) error {
		cur, err := txn.OpenCursor(dbi)
		if err != nil {
			return err
		}
		defer cur.Close()
		for {
			k, _, err := cur.Get(nil, nil, lmdb.Next)
			if lmdb.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			s.keys = append(s.keys, string(k))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan LMDB keys in %s", path)
	}
	if len(s.keys) == 0 {
		return nil, errors.Errorf("LMDB environment %s is empty", path)
	}
	return s, nil
}

func openReadonlyEnv(path string) (*lmdb.Env, lmdb.DBI, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create LMDB env")
	}
	// NoLock and NoReadahead match how training workers read a static,
	// pre-built corpus environment.
	if err := env.Open(path, lmdb.Readonly|lmdb.NoLock|lmdb.NoReadahead, 0644); err != nil {
		env.Close()
		return nil, 0, errors.Wrapf(err, "failed to open LMDB env %s", path)
	}
	var dbi lmdb.DBI
	err = env.View(func(txn *lmdb.Txn) (err error) {
		dbi, err = txn.OpenRoot(0)
		return err
	})
	if err != nil {
		env.Close()
		return nil, 0, errors.Wrapf(err, "failed to open root database in %s", path)
	}
	return env, dbi, nil
}

// ensureOpen opens the long-lived read handle on first use.
func (s *LMDBStore) ensureOpen() error {
	s.once.Do(func() {
		s.env, s.dbi, s.openErr = openReadonlyEnv(s.path)
	})
	return s.openErr
}

func (s *LMDBStore) Len() int         { return len(s.keys) }
func (s *LMDBStore) Key(i int) string { return s.keys[i] }

func (s *LMDBStore) Image(i int) (image.Image, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	key := s.keys[i]
	var img image.Image
	err := s.env.View(func(txn *lmdb.Txn) error {
		val, err := txn.Get(s.dbi, []byte(key))
		if err != nil {
			return err
		}
		img, _, err = image.Decode(bytes.NewReader(val))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %q from %s", key, s.path)
	}
	return img, nil
}

// Close releases the LMDB read handle if it was opened.
func (s *LMDBStore) Close() {
	if s.env != nil {
		s.env.Close()
		s.env = nil
	}
}
