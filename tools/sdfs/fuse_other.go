//go:build !(linux || darwin)

package sdfs

import "errors"

func mount(image, dir string) error {
	return errors.New("fuse mounts need linux or darwin")
}
