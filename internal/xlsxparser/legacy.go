package xlsxparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/richardlehane/mscfb"
)

// =============================================================================
// LEGACY WORKBOOKS
// =============================================================================

// workbookStreamName is the compound-file stream holding a BIFF8 workbook.
// BIFF5 files store theirs as "Book".
const (
	workbookStreamName = "Workbook"
	biff5StreamName    = "Book"
)

// DecodeLegacy reads a BIFF8 (.xls) workbook held in memory and returns its
// first worksheet.
//
// PARAMETERS:
//   - data: The complete workbook file contents.
//
// RETURNS:
//   - The decoded first worksheet, trimmed to its used range.
//   - An error if the bytes are not a readable BIFF8 workbook.
//
// Cells are typed from the raw records, not from their display format: a
// number is a CellNumber whatever format it carries, so date serials and
// currency-formatted amounts reach the cleaner exactly as .xlsx cells do.
// Formula cells take their cached result.
func DecodeLegacy(data []byte) (*types.Sheet, error) {
	stream, err := workbookStream(data)
	if err != nil {
		return nil, err
	}

	globals, err := readGlobals(stream)
	if err != nil {
		return nil, err
	}

	for _, sheet := range globals.sheets {
		if sheet.kind == sheetKindWorksheet {
			return readSheet(stream, sheet, globals)
		}
	}
	return nil, fmt.Errorf("workbook has no sheets")
}

// workbookStream extracts the BIFF8 workbook stream from the compound file.
func workbookStream(data []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy workbook: %w", err)
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case workbookStreamName:
			if entry.Size < 0 || entry.Size > int64(len(data)) {
				return nil, fmt.Errorf("workbook stream size %d exceeds the file size", entry.Size)
			}
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(entry, buf); err != nil {
				return nil, fmt.Errorf("failed to read workbook stream: %w", err)
			}
			return buf, nil
		case biff5StreamName:
			return nil, errUnsupportedBIFF
		}
	}
	return nil, fmt.Errorf("failed to open legacy workbook: no %s stream", workbookStreamName)
}

// =============================================================================
// WORKBOOK GLOBALS
// =============================================================================

var (
	errUnsupportedBIFF = errors.New("only Excel 97-2003 (BIFF8) workbooks are supported")
	errTruncated       = errors.New("record is truncated")
)

const sheetKindWorksheet = 0x00

type boundSheet struct {
	name   string
	offset int
	kind   byte
}

type workbookGlobals struct {
	strings  []string
	sheets   []boundSheet
	date1904 bool
}

// readGlobals reads the globals substream: shared strings, the sheet
// directory and the date system.
func readGlobals(stream []byte) (*workbookGlobals, error) {
	r := &recordReader{buf: stream}

	bof, err := r.next()
	if err != nil || bof.typ != recBOF {
		return nil, fmt.Errorf("workbook stream does not start with a BOF record")
	}
	if len(bof.data) < 2 || le.Uint16(bof.data) != biff8Version {
		return nil, errUnsupportedBIFF
	}

	g := &workbookGlobals{}
	var sst [][]byte
	for {
		rec, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		// The shared string table ends at the first non-CONTINUE record.
		if sst != nil && rec.typ != recContinue {
			if g.strings, err = readSST(sst); err != nil {
				return nil, err
			}
			sst = nil
		}

		switch rec.typ {
		case recEOF:
			return g, nil

		case recFilePass:
			return nil, fmt.Errorf("workbook is password protected")

		case recDateMode:
			if len(rec.data) >= 2 {
				g.date1904 = le.Uint16(rec.data) == 1
			}

		case recSST:
			sst = [][]byte{rec.data}

		case recContinue:
			if sst != nil {
				sst = append(sst, rec.data)
			}

		case recBoundSheet:
			sheet, err := parseBoundSheet(rec.data)
			if err != nil {
				return nil, fmt.Errorf("reading sheet directory: %w", err)
			}
			g.sheets = append(g.sheets, sheet)
		}
	}

	if sst != nil {
		if g.strings, err = readSST(sst); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func parseBoundSheet(d []byte) (boundSheet, error) {
	if len(d) < 8 {
		return boundSheet{}, errTruncated
	}
	name, _, err := decodeChars(d[8:], int(d[6]), d[7]&0x01 != 0)
	if err != nil {
		return boundSheet{}, err
	}
	return boundSheet{
		name:   name,
		offset: int(le.Uint32(d[0:4])),
		kind:   d[5],
	}, nil
}

// =============================================================================
// WORKSHEET CELLS
// =============================================================================

// readSheet decodes the cell records of one worksheet substream.
func readSheet(stream []byte, sheet boundSheet, g *workbookGlobals) (*types.Sheet, error) {
	if sheet.offset < 0 || sheet.offset >= len(stream) {
		return nil, fmt.Errorf("sheet %q points outside the workbook stream", sheet.name)
	}

	r := &recordReader{buf: stream, pos: sheet.offset}
	if bof, err := r.next(); err != nil || bof.typ != recBOF {
		return nil, fmt.Errorf("sheet %q has no BOF record", sheet.name)
	}

	grid := &cellGrid{}
	pending := cellRef{row: -1}

	// Embedded chart and object substreams nest their own BOF/EOF pairs.
	depth := 1

	for {
		rec, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet.name, err)
		}

		switch rec.typ {
		case recBOF:
			depth++
			continue
		case recEOF:
			depth--
			if depth <= 0 {
				return grid.sheet(sheet.name, g.date1904), nil
			}
			continue
		}
		if depth != 1 {
			continue
		}

		if err := decodeCellRecord(rec, g, grid, &pending); err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet.name, err)
		}
	}

	return grid.sheet(sheet.name, g.date1904), nil
}

type cellRef struct{ row, col int }

// decodeCellRecord stores the cell(s) carried by rec. A string-valued
// formula leaves its position in pending until the STRING record with the
// cached text arrives.
func decodeCellRecord(rec record, g *workbookGlobals, grid *cellGrid, pending *cellRef) error {
	d := rec.data

	switch rec.typ {
	case recLabelSST:
		if len(d) < 10 {
			return errTruncated
		}
		idx := int(le.Uint32(d[6:10]))
		if idx >= len(g.strings) {
			return fmt.Errorf("shared string %d out of range", idx)
		}
		grid.set(cellPos(d), types.TextCell(g.strings[idx]))

	case recLabel, recRString:
		if len(d) < 9 {
			return errTruncated
		}
		text, _, err := decodeChars(d[9:], int(le.Uint16(d[6:8])), d[8]&0x01 != 0)
		if err != nil {
			return err
		}
		grid.set(cellPos(d), types.TextCell(text))

	case recNumber:
		if len(d) < 14 {
			return errTruncated
		}
		grid.set(cellPos(d), types.NumberCell(math.Float64frombits(le.Uint64(d[6:14]))))

	case recRK:
		if len(d) < 10 {
			return errTruncated
		}
		grid.set(cellPos(d), types.NumberCell(decodeRK(le.Uint32(d[6:10]))))

	case recMulRK:
		if len(d) < 6 {
			return errTruncated
		}
		pos := cellPos(d)
		for i := 0; 4+6*i+6 <= len(d)-2; i++ {
			rk := le.Uint32(d[4+6*i+2:])
			grid.set(cellRef{row: pos.row, col: pos.col + i}, types.NumberCell(decodeRK(rk)))
		}

	case recBoolErr:
		if len(d) < 8 {
			return errTruncated
		}
		if d[7] != 0 {
			grid.set(cellPos(d), types.TextCell(errorText(d[6])))
		} else {
			grid.set(cellPos(d), types.BoolCell(d[6] != 0))
		}

	case recFormula:
		if len(d) < 14 {
			return errTruncated
		}
		pos := cellPos(d)
		*pending = cellRef{row: -1}
		result := d[6:14]
		if result[6] != 0xFF || result[7] != 0xFF {
			grid.set(pos, types.NumberCell(math.Float64frombits(le.Uint64(result))))
			return nil
		}
		switch result[0] {
		case formulaString:
			*pending = pos
		case formulaBool:
			grid.set(pos, types.BoolCell(result[2] != 0))
		case formulaError:
			grid.set(pos, types.TextCell(errorText(result[2])))
		}

	case recString:
		if pending.row < 0 {
			return nil
		}
		if len(d) < 3 {
			return errTruncated
		}
		text, _, err := decodeChars(d[3:], int(le.Uint16(d[0:2])), d[2]&0x01 != 0)
		if err != nil {
			return err
		}
		grid.set(*pending, types.TextCell(text))
		*pending = cellRef{row: -1}
	}

	return nil
}

// cellPos reads the row and column every cell record starts with.
func cellPos(d []byte) cellRef {
	return cellRef{row: int(le.Uint16(d[0:2])), col: int(le.Uint16(d[2:4]))}
}

// decodeRK unpacks the compressed RK number encoding.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// errorText renders a cell error code the way a spreadsheet displays it.
func errorText(code byte) string {
	switch code {
	case 0x00:
		return "#NULL!"
	case 0x07:
		return "#DIV/0!"
	case 0x0F:
		return "#VALUE!"
	case 0x17:
		return "#REF!"
	case 0x1D:
		return "#NAME?"
	case 0x24:
		return "#NUM!"
	default:
		return "#N/A"
	}
}

// cellGrid collects decoded cells by position.
type cellGrid struct {
	rows []types.Row
}

func (g *cellGrid) set(pos cellRef, cell types.Cell) {
	if cell.Kind == types.CellEmpty {
		return
	}
	for len(g.rows) <= pos.row {
		g.rows = append(g.rows, nil)
	}
	row := g.rows[pos.row]
	for len(row) <= pos.col {
		row = append(row, types.Cell{Kind: types.CellEmpty})
	}
	row[pos.col] = cell
	g.rows[pos.row] = row
}

func (g *cellGrid) sheet(name string, date1904 bool) *types.Sheet {
	sheet := &types.Sheet{Name: name, Rows: g.rows, Date1904: date1904}
	sheet.TrimToUsedRange()
	return sheet
}
