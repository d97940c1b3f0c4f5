package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"
)

// Read reads an mzML file from an io.Reader
func Read(reader io.Reader) (MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// We are only interested in mzML content, so skip over indexedmzML
	// and everything else
	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return mzML, tokenErr
		}
		switch t := t.(type) {
		case xml.StartElement:
			if t.Name.Local == "mzML" {
				if err := d.DecodeElement(&mzML.content, &t); err != nil {
					return mzML, err
				}
			}
		}
	}

	err := mzML.traverseScan()
	return mzML, err
}

// binaryDataPars decodes the CV terms in a mzML binarydata section
//
// CV Terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 No Compression
// MS:1002312.. MS-Numpress compression types (not supported)
//
// CV Terms for binary data array types
// MS:1000514 m/z array
// MS:1000515 intensity array
//
// CV Terms for binary-data-type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func binaryDataPars(binaryDataArray *binaryDataArray) (
	bool, bool, bool, bool, error) {
	zlibCompression := bool(false) // Default: no compression
	bits64 := bool(false)          // Default: 32 bits
	mzArray := bool(false)
	intensityArray := bool(false)
	for _, cvParam := range binaryDataArray.CvPar {
		switch cvParam.Accession {
		case `MS:1000574`: // zlib compression
			zlibCompression = true
		case `MS:1000514`: // m/z array
			mzArray = true
		case `MS:1000515`: // intensity array
			intensityArray = true
		case `MS:1000523`: // 64-bit float
			bits64 = true
		case `MS:1002312`, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			return false, false, false, false,
				errors.New("mzML: MS-Numpress compression not supported (CV term " +
					cvParam.Accession + ")")
		}
	}
	return zlibCompression, bits64, mzArray, intensityArray, nil
}

func fillScan(p []Peak, binaryDataArray *binaryDataArray) ([]Peak, error) {
	zlibCompression, bits64, mzArray, intensityArray, err :=
		binaryDataPars(binaryDataArray)
	if err != nil {
		return nil, err
	}
	// We are only interested in mz and intensity
	if mzArray || intensityArray {
		data, err := base64.StdEncoding.DecodeString(binaryDataArray.Binary)
		if err != nil {
			return nil, err
		}
		if zlibCompression {
			b := bytes.NewReader(data)
			z, err := zlib.NewReader(b)
			if err != nil {
				return nil, err
			}
			defer z.Close()
			d, err := io.ReadAll(z)
			if err != nil {
				return nil, err
			}
			data = d
		}
		if bits64 {
			cnt := len(data) / 8
			if mzArray {
				for i := 0; i < cnt; i++ {
					bits := binary.LittleEndian.Uint64(data[i*8:])
					p[i].Mz = math.Float64frombits(bits)
				}
			} else {
				for i := 0; i < cnt; i++ {
					bits := binary.LittleEndian.Uint64(data[i*8:])
					p[i].Intens = math.Float64frombits(bits)
				}
			}
		} else {
			cnt := len(data) / 4
			if mzArray {
				for i := 0; i < cnt; i++ {
					bits := binary.LittleEndian.Uint32(data[i*4:])
					p[i].Mz = float64(math.Float32frombits(bits))
				}
			} else {
				for i := 0; i < cnt; i++ {
					bits := binary.LittleEndian.Uint32(data[i*4:])
					p[i].Intens = float64(math.Float32frombits(bits))
				}
			}
		}
	}
	return p, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// RetentionTime returns the retention time of a spectrum in seconds
func (f *MzML) RetentionTime(scanIndex int) (float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0.0, ErrInvalidScanIndex
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == "MS:1000016" {
				retentionTime, err := strconv.ParseFloat(cvParam.Value, 64)
				// Check if the retention time is in minutes, otherwise assume it's seconds
				if cvParam.UnitAccession == "UO:0000031" ||
					cvParam.UnitAccession == "MS:1000038" {
					retentionTime *= 60
				}

				return retentionTime, err
			}
		}
	}
	return -1.0, nil
}

// ReadScan reads a single scan.
// n is the sequence number of the scan in the mzML file,
// This is not the same as the scan number that is specified
// in the mzML file! To read a scan using the mzML number,
// use ReadScan(f, ScanIndex(f, scanNum))
func (f *MzML) ReadScan(scanIndex int) ([]Peak, error) {

	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	p := make([]Peak, f.content.Run.SpectrumList.Spectrum[scanIndex].DefaultArrayLength)
	var err error
	for _, b := range f.content.Run.SpectrumList.Spectrum[scanIndex].BinaryDataArrayList.BinaryDataArray {
		p, err = fillScan(p, &b)
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// Centroid returns true if the spectrum contains centroid peaks
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000127" { // centroid spectrum
			return true, nil
		}
	}
	return false, nil
}

// MSLevel returns the MS level of a scan
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000511" { // ms level
			msLevel, err := strconv.ParseInt(cvParam.Value, 10, 64)
			return int(msLevel), err
		}
	}
	return 1, nil // If nothing else, guess it's MS1
}

// traverseScan traverses all scans,
// collects info of all scans and
// fills the arrays f.index2id and f.id2Index to make scans accessible
func (f *MzML) traverseScan() error {

	f.index2id = make([]string, f.NumSpecs())
	f.id2Index = make(map[string]int, f.NumSpecs())
	err := error(nil)

	for i := range f.content.Run.SpectrumList.Spectrum {
		err = f.addSpecToIndex(i)
		if err != nil {
			return err
		}
	}
	return err
}

func (f *MzML) addSpecToIndex(i int) error {

	if i != f.content.Run.SpectrumList.Spectrum[i].Index {
		return ErrInvalidScanIndex
	}
	f.index2id[i] = f.content.Run.SpectrumList.Spectrum[i].ID
	f.id2Index[f.content.Run.SpectrumList.Spectrum[i].ID] = i
	return nil
}

// ScanIndex converts a scan identifier (the string used in the mzML file)
// into an index that is used to access the scans
func (f *MzML) ScanIndex(scanID string) (int, error) {
	if index, ok := f.id2Index[scanID]; ok {
		return index, nil
	}
	return 0, ErrInvalidScanID
}

// ScanID converts a scan index (used to access the scan data) into a scan id
// (used in the mzML file)
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex >= 0 && scanIndex < f.NumSpecs() {
		return f.index2id[scanIndex], nil
	}
	return "", ErrInvalidScanIndex
}
