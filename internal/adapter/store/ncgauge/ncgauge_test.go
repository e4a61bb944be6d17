package ncgauge

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// helper to create a minimal scalar gauge record with a CF time axis.
func createScalarNC(t *testing.T, path string, units string, offsets []float64, heights []float32, fill float32) {
	t.Helper()
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer f.Close()

	timeDim, _ := f.AddDim("time", uint64(len(offsets)))
	vtime, _ := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	vheight, _ := f.AddVar("height", netcdf.FLOAT, []netcdf.Dim{timeDim})

	if err := vtime.Attr("units").WriteBytes([]byte(units)); err != nil {
		t.Fatalf("write units: %v", err)
	}
	if err := vheight.Attr("_FillValue").WriteFloat32s([]float32{fill}); err != nil {
		t.Fatalf("write fill: %v", err)
	}
	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}

	if err := vtime.WriteFloat64s(offsets); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := vheight.WriteFloat32s(heights); err != nil {
		t.Fatalf("write height: %v", err)
	}
}

func createVectorNC(t *testing.T, path string, offsets []float64, us, vs []float32) {
	t.Helper()
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer f.Close()

	timeDim, _ := f.AddDim("time", uint64(len(offsets)))
	vtime, _ := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	vu, _ := f.AddVar("u", netcdf.FLOAT, []netcdf.Dim{timeDim})
	vv, _ := f.AddVar("v", netcdf.FLOAT, []netcdf.Dim{timeDim})

	if err := vtime.Attr("units").WriteBytes([]byte("hours since 2023-01-01 00:00:00")); err != nil {
		t.Fatalf("write units: %v", err)
	}
	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}

	if err := vtime.WriteFloat64s(offsets); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := vu.WriteFloat32s(us); err != nil {
		t.Fatalf("write u: %v", err)
	}
	if err := vv.WriteFloat32s(vs); err != nil {
		t.Fatalf("write v: %v", err)
	}
}

func TestLoadSeriesScalarHours(t *testing.T) {
	dir := t.TempDir()
	createScalarNC(t, filepath.Join(dir, "gauge1.nc"),
		"hours since 2023-01-01 00:00:00",
		[]float64{0, 1, 2, 3},
		[]float32{1.5, -9999, 0.25, -0.5},
		-9999)

	s, err := NewStore(dir).LoadSeries("gauge1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Vector {
		t.Error("scalar record loaded as vector")
	}
	if s.Len() != 4 {
		t.Fatalf("len = %d, want 4", s.Len())
	}
	if s.IntervalHours != 1.0 {
		t.Errorf("interval = %v, want 1", s.IntervalHours)
	}
	if !s.Start.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", s.Start)
	}
	if real(s.Values[0]) != 1.5 {
		t.Errorf("first value = %v", s.Values[0])
	}
	if !math.IsNaN(real(s.Values[1])) {
		t.Errorf("fill value not masked: %v", s.Values[1])
	}
}

func TestLoadSeriesSecondsSinceEpoch(t *testing.T) {
	dir := t.TempDir()
	createScalarNC(t, filepath.Join(dir, "gauge2.nc"),
		"seconds since 1990-06-15 12:00:00",
		[]float64{0, 1800, 3600},
		[]float32{0.1, 0.2, 0.3},
		-9999)

	s, err := NewStore(dir).LoadSeries("gauge2")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.IntervalHours-0.5) > 1e-12 {
		t.Errorf("interval = %v, want 0.5", s.IntervalHours)
	}
	if !s.Start.Equal(time.Date(1990, 6, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", s.Start)
	}
}

func TestLoadSeriesVector(t *testing.T) {
	dir := t.TempDir()
	createVectorNC(t, filepath.Join(dir, "adcp.nc"),
		[]float64{0, 0.5, 1.0},
		[]float32{0.5, 0.4, 0.3},
		[]float32{-0.2, 0.1, 0.3})

	s, err := NewStore(dir).LoadSeries("adcp")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Vector {
		t.Fatal("vector record loaded as scalar")
	}
	if s.IntervalHours != 0.5 {
		t.Errorf("interval = %v, want 0.5", s.IntervalHours)
	}
	if real(s.Values[0]) != 0.5 || math.Abs(imag(s.Values[0])+0.2) > 1e-6 {
		t.Errorf("first sample = %v", s.Values[0])
	}
}

func TestLoadSeriesRejectsNonUniform(t *testing.T) {
	dir := t.TempDir()
	createScalarNC(t, filepath.Join(dir, "bad.nc"),
		"hours since 2023-01-01 00:00:00",
		[]float64{0, 1, 3},
		[]float32{1, 2, 3},
		-9999)
	if _, err := NewStore(dir).LoadSeries("bad"); err == nil {
		t.Fatal("expected error for non-uniform sampling")
	}
}

func TestLoadSeriesMissingFile(t *testing.T) {
	if _, err := NewStore(t.TempDir()).LoadSeries("nope"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
