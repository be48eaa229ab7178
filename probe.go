package vaapi

// probeFrameSize is the edge length of synthetic probe surfaces.
const probeFrameSize = 128

// probeFormats maps a small surface of every format the driver claims to
// support and keeps the ones that survive a full map/unmap cycle.
func (d *Device) probeFormats() (FormatList, error) {
	d.probing = true
	defer func() { d.probing = false }()

	var supported FormatList
	candidates, err := d.hw.ValidFormats()
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to retrieve VA frame constraints")
	}

	for _, f := range candidates {
		s, err := d.hw.AllocFrame(f, probeFrameSize, probeFrameSize)
		if err != nil {
			d.log.Debug().Err(err).Str("format", f.String()).Msg("Could not allocate probe surface")
			continue
		}
		if !s.Params.Valid() {
			s.Release()
			continue
		}
		if d.tryFormat(s) {
			supported.add(s.Params.HWSubformat)
		}
		s.Release()
	}

	d.log.Debug().Str("formats", supported.String()).Msg("Supported formats")

	if supported.Len() == 0 {
		return FormatList{}, ErrNoFormats
	}
	return supported, nil
}

func (d *Device) tryFormat(s *Surface) bool {
	m, err := d.NewMapper(s.Params)
	if err != nil {
		d.log.Debug().Err(err).Str("format", s.Params.HWSubformat.String()).Msg("Probe mapper init failed")
		return false
	}
	defer m.Close()
	return m.Map(s) == nil
}
