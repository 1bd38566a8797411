package pathspec

import "fmt"

// registerBuiltinValidators wires the addressing-attribute table of §6
// for every type in the closed set. Mirrors the way each rclone backend's
// init() registers its own fs.RegInfo/Options — here one validator per
// type indicator instead of one fs.RegInfo per backend name.
func registerBuiltinValidators() {
	simpleLocation := func(t Type) validator {
		return func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
			if err := requireAttrs(attrs, AttrLocation); err != nil {
				return nil, err
			}
			return copyKnown(attrs, AttrLocation), nil
		}
	}

	Register(OS, simpleLocation(OS))
	Register(FAKE, simpleLocation(FAKE))

	Register(MOUNT, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		if err := requireAttrs(attrs, AttrIdentifier); err != nil {
			return nil, err
		}
		return copyKnown(attrs, AttrIdentifier), nil
	})

	Register(DATA_RANGE, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		if err := requireAttrs(attrs, AttrRangeOffset, AttrRangeSize); err != nil {
			return nil, err
		}
		out := copyKnown(attrs, AttrRangeOffset, AttrRangeSize)
		off, ok1 := out[AttrRangeOffset].(int64)
		size, ok2 := out[AttrRangeSize].(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("range_offset and range_size must be int64")
		}
		if off < 0 || size < 0 {
			return nil, fmt.Errorf("range_offset and range_size must be non-negative")
		}
		return out, nil
	})

	Register(COMPRESSED_STREAM, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		if err := requireAttrs(attrs, AttrCompressionMethod); err != nil {
			return nil, err
		}
		return copyKnown(attrs, AttrCompressionMethod), nil
	})

	Register(ENCODED_STREAM, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		if err := requireAttrs(attrs, AttrEncodingMethod); err != nil {
			return nil, err
		}
		return copyKnown(attrs, AttrEncodingMethod), nil
	})

	Register(ENCRYPTED_STREAM, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		if err := requireAttrs(attrs, AttrEncryptionMethod); err != nil {
			return nil, err
		}
		return copyKnown(attrs, AttrEncryptionMethod, AttrCipherMode, AttrInitializationVector, AttrKey), nil
	})

	Register(GZIP, noAttrs)

	for _, t := range []Type{EWF, QCOW, VHDI, VMDK, RAW, SMRAW, MODI, PHDI} {
		Register(t, noAttrs)
	}

	Register(BDE, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		return copyKnown(attrs, AttrPassword, AttrRecoveryPassword, AttrStartupKey), nil
	})
	Register(FVDE, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		return copyKnown(attrs, AttrPassword, AttrRecoveryPassword, AttrEncryptedRootPlist), nil
	})
	Register(LUKSDE, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		return copyKnown(attrs, AttrPassword), nil
	})

	volumeSystemLocators := []string{AttrLocation, AttrVolumeIndex, AttrStoreIndex, AttrPartIndex}
	volumeSystem := func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		found := false
		for _, n := range volumeSystemLocators {
			if _, ok := attrs[n]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("requires one of %v", volumeSystemLocators)
		}
		return copyKnown(attrs, append(append([]string{}, volumeSystemLocators...), AttrStartOffset)...), nil
	}
	for _, t := range []Type{APFS_CONTAINER, LVM, GPT, APM, MBR, TSK_PARTITION, VSHADOW} {
		Register(t, volumeSystem)
	}

	fileSystemType := func(extra ...string) validator {
		return func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
			if err := requireAttrs(attrs, AttrLocation); err != nil {
				return nil, err
			}
			allowed := append([]string{AttrLocation, AttrInode, AttrIdentifier, AttrMFTEntry}, extra...)
			return copyKnown(attrs, allowed...), nil
		}
	}
	for _, t := range []Type{APFS, EXT, HFS, XFS, FAT, TSK} {
		Register(t, fileSystemType())
	}
	Register(NTFS, fileSystemType(AttrDataStream, AttrMFTAttribute))

	for _, t := range []Type{CPIO, TAR, ZIP} {
		Register(t, simpleLocation(t))
	}

	Register(SQLITE_BLOB, func(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
		if err := requireAttrs(attrs, AttrTableName, AttrColumnName); err != nil {
			return nil, err
		}
		_, hasRow := attrs[AttrRowIndex]
		_, hasCond := attrs[AttrRowCondition]
		if !hasRow && !hasCond {
			return nil, fmt.Errorf("requires one of %q or %q", AttrRowIndex, AttrRowCondition)
		}
		if hasRow && hasCond {
			return nil, fmt.Errorf("accepts only one of %q or %q", AttrRowIndex, AttrRowCondition)
		}
		return copyKnown(attrs, AttrTableName, AttrColumnName, AttrRowIndex, AttrRowCondition), nil
	})
}

func noAttrs(parent *PathSpec, attrs map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}
