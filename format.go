package blockfat

import (
	"github.com/aligator/blockfat/checkpoint"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Format writes an empty volume spanning the whole device. The device is not closed.
func Format(device BlockDevice) error {
	sb, err := geometry(device.BlockCount())
	if err != nil {
		return err
	}

	var buf [BlockSize]byte
	sb.Encode(&buf)
	if err := device.WriteBlock(0, buf[:]); err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	table := newFAT(int(sb.DataBlockCount), int(sb.FATBlockCount))
	for i := 0; i < int(sb.FATBlockCount); i++ {
		table.encodeBlock(i, &buf)
		if err := device.WriteBlock(1+i, buf[:]); err != nil {
			return checkpoint.Wrap(err, ErrIO)
		}
	}

	var entry dirEntry
	entry.clear()
	for i := 0; i < MaxFiles; i++ {
		entry.encode(buf[i*dirEntrySize : (i+1)*dirEntrySize])
	}
	if err := device.WriteBlock(int(sb.RootBlock), buf[:]); err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	Logger().Debug("formatted volume",
		zap.Int("blocks", int(sb.BlockCount)),
		zap.Int("dataBlocks", int(sb.DataBlockCount)))
	return nil
}

// CreateImage creates the image name of the given number of blocks in afs and
// formats it. An existing file is overwritten.
func CreateImage(afs afero.Fs, name string, blocks int) error {
	if _, err := geometry(blocks); err != nil {
		return err
	}

	file, err := afs.Create(name)
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	if err := file.Truncate(int64(blocks) * BlockSize); err != nil {
		file.Close()
		return checkpoint.Wrap(err, ErrIO)
	}

	if err := file.Close(); err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	device, err := OpenDevice(afs, name)
	if err != nil {
		return err
	}

	if err := Format(device); err != nil {
		device.Close()
		return err
	}
	return device.Close()
}
