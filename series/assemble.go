package series

import (
	"fmt"

	"github.com/mjw/volconv/orient"
)

// assembleGroup turns every record seen for one (study, raw series
// number) group into one or more named Entities, filed into result under
// gk.study. warnings is a running counter shared across the whole scan,
// incremented for every soft ReasonGuessPerformed recorded here.
func assembleGroup(result *Result, report *Report, gk groupKey, recs []record, opts Options, warnings *int) {
	byOrient := map[[6]float64][]record{}
	for _, r := range recs {
		byOrient[r.orientKey] = append(byOrient[r.orientKey], r)
	}

	var candidates []subSeries
	for k, rs := range byOrient {
		minInst := rs[0].fields.instanceNumber
		for _, r := range rs {
			if r.fields.hasInstanceNumber && r.fields.instanceNumber < minInst {
				minInst = r.fields.instanceNumber
			}
		}
		candidates = append(candidates, subSeries{orientKey: k, minInstance: minInst})
	}
	names := assignNames(candidates, opts)

	if result.Studies[gk.study] == nil {
		result.Studies[gk.study] = map[SeriesKey]*Entity{}
	}

	for orientKey, rs := range byOrient {
		suffix := names[orientKey]
		if orientKey == ([6]float64{}) {
			// The zero orientation is the sentinel Scan assigns to files
			// stacked naively under Options.StackUnk, which never carried
			// real geometry: such a sub-series is always named "unk"
			// rather than whatever assignNames would otherwise compute.
			suffix = "unk"
		}
		seriesKey := SeriesKey(fmt.Sprintf("%d", gk.series))
		if suffix != "" {
			seriesKey = SeriesKey(fmt.Sprintf("%d%s", gk.series, suffix))
		}
		if len(rs) == 0 {
			continue
		}
		entity := buildEntity(orientKey, rs, opts, report, warnings)
		result.Studies[gk.study][seriesKey] = entity
	}
}

// buildEntity expands every record in rs (one per file, pre-mosaic) into
// the Entity's per-(slice,time,echo) maps: unpacking Siemens mosaics into
// their constituent tile slices, reconstructing a time axis from instance
// numbers when no temporal-position tag was present, and finally
// recording any volumes left short of slices.
func buildEntity(orientKey [6]float64, rs []record, opts Options, report *Report, warnings *int) *Entity {
	e := newEntity()
	e.Orient[orientKey] = true
	img := orient.NewImage(nil, [3]float64{1, 1, 1}, [][6]float64{orientKey}, [3]float64{}, nil)
	normk := img.Normk()

	type plane struct {
		slice    float64
		rec      *record
		tile     int
		tiles    int
		tileRows int
		tileCols int
	}
	var planes []plane

	for idx := range rs {
		r := &rs[idx]
		tiles := 0
		if opts.CSA && r.hasCSA {
			tiles = detectMosaicTiles(r.csaImage, opts.Mosaic)
		} else if opts.Mosaic > 0 {
			tiles = opts.Mosaic
		}
		if tiles > 1 {
			side, _ := mosaicGrid(tiles)
			tileRows := r.fields.rows / side
			tileCols := r.fields.cols / side
			for t := 0; t < tiles; t++ {
				planes = append(planes, plane{
					slice:    r.sliceIdx + float64(t)*r.fields.sliceThickness,
					rec:      r,
					tile:     t,
					tiles:    tiles,
					tileRows: tileRows,
					tileCols: tileCols,
				})
			}
		} else {
			planes = append(planes, plane{slice: r.sliceIdx, rec: r, tile: -1, tiles: 0})
		}
	}

	if len(rs) > 0 {
		e.Cols, e.Rows = rs[0].fields.cols, rs[0].fields.rows
		e.BitsAllocated = rs[0].fields.bitsAllocated
		e.Res = [3]float64{rs[0].fields.pixelSpacing[0], rs[0].fields.pixelSpacing[1], rs[0].fields.sliceThickness}
		e.Desc = rs[0].fields.seriesDesc
		e.Type = rs[0].fields.imageType
		e.StudyDate = rs[0].fields.studyDate
		e.StudyTime = rs[0].fields.studyTime
		e.Date = rs[0].fields.date
		e.Time = rs[0].fields.time
		e.TR = rs[0].fields.tr
		e.Flip = rs[0].fields.flip
		e.SAR = rs[0].fields.sar
		e.Phase = rs[0].fields.phase
	}
	if len(planes) > 0 && planes[0].tile >= 0 {
		// Mosaic: the DICOM rows/cols tags describe the padded tile grid,
		// not one real slice. Per the mosaic unpacking rule in
		// SPEC_FULL.md section 4.4, in-plane shape becomes mrows/side and
		// mcols/side.
		e.Rows, e.Cols = planes[0].tileRows, planes[0].tileCols
	}

	needsTimeGuess := false
	perSlice := map[sliceEchoKey][]instanceToken{}
	for pIdx := range planes {
		p := &planes[pIdx]
		e.Slices[p.slice] = true
		e.Echoes[p.rec.fields.echoNumber] = true
		e.TE[p.rec.fields.echoNumber] = p.rec.fields.echoTime
		if p.rec.fields.hasPosition {
			pos := p.rec.fields.position
			if p.tile >= 0 {
				iVec := [3]float64{orientKey[0], orientKey[1], orientKey[2]}
				jVec := [3]float64{orientKey[3], orientKey[4], orientKey[5]}
				side, _ := mosaicGrid(p.tiles)
				truepos := mosaicCorrection(pos, iVec, jVec,
					p.rec.fields.pixelSpacing[1], p.rec.fields.pixelSpacing[0],
					side, side, p.tileRows, p.tileCols)
				pos = [3]float64{
					truepos[0] + normk[0]*float64(p.tile)*p.rec.fields.sliceThickness,
					truepos[1] + normk[1]*float64(p.tile)*p.rec.fields.sliceThickness,
					truepos[2] + normk[2]*float64(p.tile)*p.rec.fields.sliceThickness,
				}
			}
			e.Slicesd[p.slice] = pos
		}

		if !p.rec.fields.hasTemporalPosition {
			needsTimeGuess = true
			key := sliceEchoKey{slice: p.slice, echo: p.rec.fields.echoNumber}
			perSlice[key] = append(perSlice[key], instanceToken{instance: p.rec.fields.instanceNumber, token: pIdx})
		}
	}

	timeOf := make(map[int]string, len(planes))
	if needsTimeGuess {
		reconstructed, stats := reconstructTimes(perSlice)
		if stats.missingPlanes {
			report.Record(ReasonGuessPerformed, planes[0].rec.path, fmt.Errorf("missing planes in instance order: not every (slice,echo) group produced the same number of volumes"))
			*warnings++
		}
		if stats.spacingInconsistent {
			report.Record(ReasonGuessPerformed, planes[0].rec.path, fmt.Errorf("instance spacing inconsistent across (slice,echo) groups; multi-volume assignment may be wrong"))
			*warnings++
		} else if stats.multipleVolumeAxes {
			report.Record(ReasonGuessPerformed, planes[0].rec.path, fmt.Errorf("instance spacing not constant; series probably has multiple volume axes"))
			*warnings++
		}
		if len(reconstructed) > 0 {
			report.Record(ReasonGuessPerformed, planes[0].rec.path, fmt.Errorf("no TemporalPositionIdentifier; reconstructing time from instance numbers"))
			*warnings++
		}
		for k, v := range reconstructed {
			timeOf[k.(int)] = v
		}
	}

	for pIdx := range planes {
		p := &planes[pIdx]
		t := timeKey(1)
		if p.rec.fields.hasTemporalPosition {
			t = timeKey(p.rec.fields.temporalPosition)
		} else if v, ok := timeOf[pIdx]; ok {
			t = v
		}
		e.Times[t] = true

		if p.rec.fields.hasDiffusion {
			if _, ok := e.Diff[t]; !ok {
				e.Diff[t] = p.rec.fields.diffusion
			}
		}
		if p.rec.fields.bval != nil {
			if _, ok := e.Bval[t]; !ok {
				v := *p.rec.fields.bval
				e.Bval[t] = &v
			}
		}

		ste := SliceTimeEcho{Slice: p.slice, Time: t, Echo: p.rec.fields.echoNumber}
		e.File[ste] = p.rec.path
		e.Rescale[ste] = p.rec.fields.rescale
		e.Descrip[ste] = p.rec.fields.seriesDesc
		e.Dtimes[ste] = p.rec.fields.dtime
		// Little-endian, per the reader's transfer-syntax handling: every
		// supported transfer syntax other than the deprecated explicit-VR
		// big-endian one decodes pixel data little-endian, and the reader
		// does not currently surface a per-element byte order to callers.
		e.End[ste] = LittleEndian
		if p.tile >= 0 {
			e.Mosaic[ste] = tileDescriptor(p.tile, p.tiles, p.rec.fields.rows, p.rec.fields.cols)
		}
		e.Pixels[ste] = p.rec.pixels
	}

	for t := range e.Times {
		for echo := range e.Echoes {
			count := 0
			for slice := range e.Slices {
				if _, ok := e.File[SliceTimeEcho{Slice: slice, Time: t, Echo: echo}]; ok {
					count++
				}
			}
			if missing := len(e.Slices) - count; missing > 0 {
				e.Missing[[2]interface{}{t, echo}] = missing
				report.Record(ReasonGuessPerformed, "", fmt.Errorf("volume (time=%s, echo=%d) is missing %d of %d slices", t, echo, missing, len(e.Slices)))
				*warnings++
			}
		}
	}

	return e
}
