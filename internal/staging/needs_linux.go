//go:build linux

package staging

import "golang.org/x/sys/unix"

// Filesystem magic numbers from statfs(2).
const (
	nfsMagic   = 0x6969
	smbMagic   = 0x517b
	cifsMagic  = 0xff534d42
	smb2Magic  = 0xfe534d42
	fuseMagic  = 0x65735546
	afsMagic   = 0x5346414f
	cephMagic  = 0x00c36400
	codaMagic  = 0x73757245
	ncpMagic   = 0x564c
	nfsdMagic  = 0x6e667364
	ocfs2Magic = 0x7461636f
)

var networkMagics = map[uint32]struct{}{
	nfsMagic: {}, smbMagic: {}, cifsMagic: {}, smb2Magic: {}, fuseMagic: {},
	afsMagic: {}, cephMagic: {}, codaMagic: {}, ncpMagic: {}, nfsdMagic: {},
	ocfs2Magic: {},
}

func onNetworkFS(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, err
	}
	_, ok := networkMagics[uint32(st.Type)]
	return ok, nil
}
