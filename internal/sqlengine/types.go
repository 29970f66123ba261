package sqlengine

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// duckType maps an arrow type to the DuckDB column type used to hold it.
func duckType(t arrow.DataType) (string, error) {
	switch t.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "VARCHAR", nil
	case arrow.BOOL:
		return "BOOLEAN", nil
	case arrow.INT8:
		return "TINYINT", nil
	case arrow.INT16:
		return "SMALLINT", nil
	case arrow.INT32:
		return "INTEGER", nil
	case arrow.INT64:
		return "BIGINT", nil
	case arrow.FLOAT32:
		return "FLOAT", nil
	case arrow.FLOAT64:
		return "DOUBLE", nil
	}
	return "", fmt.Errorf("sqlengine: unsupported arrow type %s", t)
}

// arrowType maps a DuckDB result column type name back to arrow.
func arrowType(dbType string) (arrow.DataType, error) {
	switch strings.ToUpper(dbType) {
	case "VARCHAR", "TEXT", "STRING":
		return arrow.BinaryTypes.String, nil
	case "BOOLEAN", "BOOL":
		return arrow.FixedWidthTypes.Boolean, nil
	case "TINYINT", "INT1":
		return arrow.PrimitiveTypes.Int8, nil
	case "SMALLINT", "INT2":
		return arrow.PrimitiveTypes.Int16, nil
	case "INTEGER", "INT4", "INT":
		return arrow.PrimitiveTypes.Int32, nil
	case "BIGINT", "INT8":
		return arrow.PrimitiveTypes.Int64, nil
	case "FLOAT", "REAL", "FLOAT4":
		return arrow.PrimitiveTypes.Float32, nil
	case "DOUBLE", "FLOAT8":
		return arrow.PrimitiveTypes.Float64, nil
	}
	return nil, fmt.Errorf("sqlengine: unsupported column type %q", dbType)
}
