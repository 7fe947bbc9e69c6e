package playlist

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/db"
	"github.com/skylark-radio/skylark/internal/model"
	"github.com/skylark-radio/skylark/internal/same"
)

// Writer renders playlist and message artifacts under a shared
// directory tree, one subdirectory per transmitter group:
//
//	{root}/{group}/{priority}_{suite}_{modTime}.xml
//	{root}/{group}/messages/{broadcastId}_{updateTime}.xml
//
// Writes are atomic (temp file plus rename) so a consumer never reads
// a partial artifact.
type Writer struct {
	root     string
	store    db.Store
	callsign string
}

func NewWriter(root string, store db.Store, callsign string) (*Writer, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("playlist root %s: %w", root, err)
	}
	return &Writer{root: root, store: store, callsign: callsign}, nil
}

// GroupDir returns the artifact directory for a transmitter group.
func (w *Writer) GroupDir(group string) string {
	return filepath.Join(w.root, group)
}

// RemoveGroup deletes the whole artifact tree for a group.
func (w *Writer) RemoveGroup(group string) error {
	return os.RemoveAll(w.GroupDir(group))
}

// WritePlaylist writes the playlist artifact and returns its path
// relative to the artifact root.
func (w *Writer) WritePlaylist(dac *model.DacPlaylist) (string, error) {
	dir := w.GroupDir(dac.TransmitterGroup)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := dac.PlaylistFileName()
	if err := writeXMLAtomic(dir, name, dac); err != nil {
		return "", err
	}
	return filepath.Join(dac.TransmitterGroup, name), nil
}

// WriteMessageMetadata writes the full metadata artifact for a message
// unless one already exists for its update timestamp. The file name is
// the cache key: a message only changes by getting a new update time,
// so an existing file is always current.
func (w *Writer) WriteMessageMetadata(group *model.TransmitterGroup, msg *model.BroadcastMsg) error {
	id := model.DacPlaylistMessageID{BroadcastID: msg.ID, UpdateTime: msg.UpdateTime}
	dir := filepath.Join(w.GroupDir(group.Name), "messages")
	path := filepath.Join(dir, id.MetadataFileName())
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	in := msg.InputMessage
	meta := &model.DacPlaylistMessage{
		BroadcastID: msg.ID,
		MessageType: in.AfosID,
		Start:       in.EffectiveTime,
		Expire:      in.ExpirationTime,
		Periodicity: in.Periodicity,
		MessageText: in.Content,
		AlertTone:   in.AlertTone,
		Confirm:     in.Confirm,
		SAMETone:    w.buildSameTone(group, msg),
	}
	for _, frag := range msg.Fragments {
		if frag.Success {
			meta.SoundFiles = append(meta.SoundFiles, frag.OutputName)
		}
	}
	if mt, err := w.store.GetMessageTypeByAfosID(in.AfosID); err == nil {
		if meta.Periodicity == "" {
			meta.Periodicity = mt.Periodicity
		}
		meta.ToneBlackoutStart = mt.ToneBlackoutStart
		meta.ToneBlackoutEnd = mt.ToneBlackoutEnd
	} else if !errors.Is(err, db.ErrNotFound) {
		log.Warn().Err(err).Str("afos_id", in.AfosID).
			Msg("cannot load message type for metadata artifact")
	}

	return writeXMLAtomic(dir, id.MetadataFileName(), meta)
}

// buildSameTone assembles the SAME header for a message that requires
// one. The UGC codes are expanded to areas and filtered to those a
// transmitter in the group actually serves; individual bad codes are
// logged and skipped rather than failing the artifact.
func (w *Writer) buildSameTone(group *model.TransmitterGroup, msg *model.BroadcastMsg) string {
	in := msg.InputMessage
	if !in.NWRSameTone || in.AreaCodes == "" {
		return ""
	}
	if same.IsDemoAfosID(in.AfosID) {
		return same.DemoTone(w.callsign, in.EffectiveTime)
	}

	b := same.NewBuilder()
	if err := b.SetEventFromAfosID(in.AfosID); err != nil {
		log.Warn().Err(err).Str("afos_id", in.AfosID).
			Msg("cannot derive SAME event code")
		return ""
	}
	for _, ugc := range in.AreaCodeList() {
		if err := w.addUGC(b, group, ugc); err != nil {
			if errors.Is(err, same.ErrTooManyAreas) {
				log.Warn().Str("afos_id", in.AfosID).
					Msg("SAME header area limit reached, remaining areas dropped")
				break
			}
			log.Warn().Err(err).Str("ugc", ugc).
				Msg("skipping unusable UGC code in SAME header")
		}
	}
	b.SetEffectiveTime(in.EffectiveTime)
	b.SetExpireTime(in.ExpirationTime)
	b.SetCallsign(w.callsign)
	tone, err := b.Build()
	if err != nil {
		log.Warn().Err(err).Int64("broadcast_id", msg.ID).
			Msg("cannot build SAME header")
		return ""
	}
	return tone
}

func (w *Writer) addUGC(b *same.Builder, group *model.TransmitterGroup, ugc string) error {
	if len(ugc) >= 3 && ugc[2] == 'Z' {
		zone, err := w.store.GetZoneByCode(ugc)
		if err != nil {
			return fmt.Errorf("zone %s: %w", ugc, err)
		}
		for i := range zone.Areas {
			area := &zone.Areas[i]
			if !area.ServesAnyOf(group.Transmitters) {
				continue
			}
			if err := b.AddAreaFromUGC(area.AreaCode); err != nil {
				return err
			}
		}
		return nil
	}
	area, err := w.store.GetAreaByCode(ugc)
	if err != nil {
		return fmt.Errorf("area %s: %w", ugc, err)
	}
	if !area.ServesAnyOf(group.Transmitters) {
		return nil
	}
	return b.AddAreaFromUGC(area.AreaCode)
}

func writeXMLAtomic(dir, name string, v any) error {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(xml.Header); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
