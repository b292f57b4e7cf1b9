package storage

import "strings"

// Capability is a bit set of optional features a provider declares.
type Capability uint32

const (
	CapList Capability = 1 << iota
	CapRead
	CapWrite
	CapDelete
	CapMkdir
	CapCopy
	CapMove
	CapDownload
	CapUpload
	CapContainers
	CapConnection

	// Queryable only; the pending engine never gates on these.
	CapVersioning
	CapMetadata
	CapPermissions
	CapSymlinks
	CapHardlinks
	CapPresignedURLs
	CapBatchDelete
	CapExtendedAttrs
	CapFileLocking
	CapDelegations
	CapServerSideCopy
	CapResume
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapList, "list"},
	{CapRead, "read"},
	{CapWrite, "write"},
	{CapDelete, "delete"},
	{CapMkdir, "mkdir"},
	{CapCopy, "copy"},
	{CapMove, "move"},
	{CapDownload, "download"},
	{CapUpload, "upload"},
	{CapContainers, "containers"},
	{CapConnection, "connection"},
	{CapVersioning, "versioning"},
	{CapMetadata, "metadata"},
	{CapPermissions, "permissions"},
	{CapSymlinks, "symlinks"},
	{CapHardlinks, "hardlinks"},
	{CapPresignedURLs, "presigned-urls"},
	{CapBatchDelete, "batch-delete"},
	{CapExtendedAttrs, "xattrs"},
	{CapFileLocking, "file-locking"},
	{CapDelegations, "delegations"},
	{CapServerSideCopy, "server-side-copy"},
	{CapResume, "resume"},
}

// Has reports whether every bit of want is set.
func (c Capability) Has(want Capability) bool {
	return want != 0 && c&want == want
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var names []string
	for _, cn := range capabilityNames {
		if c&cn.cap != 0 {
			names = append(names, cn.name)
		}
	}
	return strings.Join(names, ",")
}

// CapabilitySet embeds into providers to implement Capabilities and
// HasCapability from a fixed set.
type CapabilitySet struct {
	Set Capability
}

// Capabilities returns the declared set.
func (c CapabilitySet) Capabilities() Capability { return c.Set }

// HasCapability reports whether want is declared.
func (c CapabilitySet) HasCapability(want Capability) bool { return c.Set.Has(want) }
