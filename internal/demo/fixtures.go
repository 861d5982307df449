package demo

// Column is an insertable column of a fixture table.
type Column struct {
	Name     string
	DataType string
	Length   int
	IsPK     bool   // filled with the row number, starting at 1
	RefTable string // foreign key target; values come from that table's keys
}

// Table is a fixture table: its DDL and the columns seeded with generated rows.
type Table struct {
	Name    string
	DDL     string
	Columns []Column
}

// FestivalTables are created on both databases, parents before children.
var FestivalTables = []Table{
	{
		Name: "festivals",
		DDL: "CREATE TABLE `festivals` (\n" +
			"  `festival_id` int NOT NULL AUTO_INCREMENT,\n" +
			"  `name` varchar(32) DEFAULT NULL,\n" +
			"  `place` varchar(32) DEFAULT NULL,\n" +
			"  `date` date DEFAULT NULL,\n" +
			"  PRIMARY KEY (`festival_id`)\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		Columns: []Column{
			{Name: "festival_id", DataType: "int", IsPK: true},
			{Name: "name", DataType: "varchar", Length: 32},
			{Name: "place", DataType: "varchar", Length: 32},
			{Name: "date", DataType: "date"},
		},
	},
	{
		Name: "bands",
		DDL: "CREATE TABLE `bands` (\n" +
			"  `band_id` int NOT NULL AUTO_INCREMENT,\n" +
			"  `name` varchar(32) DEFAULT NULL,\n" +
			"  `genre` varchar(32) DEFAULT NULL,\n" +
			"  `city` varchar(32) DEFAULT NULL,\n" +
			"  PRIMARY KEY (`band_id`)\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		Columns: []Column{
			{Name: "band_id", DataType: "int", IsPK: true},
			{Name: "name", DataType: "varchar", Length: 32},
			{Name: "genre", DataType: "varchar", Length: 32},
			{Name: "city", DataType: "varchar", Length: 32},
		},
	},
	{
		Name: "schedules",
		DDL: "CREATE TABLE `schedules` (\n" +
			"  `schedule_id` int NOT NULL AUTO_INCREMENT,\n" +
			"  `festival_id` int NOT NULL,\n" +
			"  `band_id` int NOT NULL,\n" +
			"  `time` time NOT NULL,\n" +
			"  PRIMARY KEY (`schedule_id`),\n" +
			"  CONSTRAINT `schedules_ibfk_1` FOREIGN KEY (`festival_id`) REFERENCES `festivals` (`festival_id`),\n" +
			"  CONSTRAINT `schedules_ibfk_2` FOREIGN KEY (`band_id`) REFERENCES `bands` (`band_id`)\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		Columns: []Column{
			{Name: "festival_id", DataType: "int", RefTable: "festivals"},
			{Name: "band_id", DataType: "int", RefTable: "bands"},
			{Name: "time", DataType: "time"},
		},
	},
	{
		Name: "managers",
		DDL: "CREATE TABLE `managers` (\n" +
			"  `manager_id` int NOT NULL AUTO_INCREMENT,\n" +
			"  `first_name` varchar(32) DEFAULT NULL,\n" +
			"  `last_name` varchar(32) DEFAULT NULL,\n" +
			"  `email` varchar(64) DEFAULT NULL,\n" +
			"  PRIMARY KEY (`manager_id`)\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		Columns: []Column{
			{Name: "first_name", DataType: "varchar", Length: 32},
			{Name: "last_name", DataType: "varchar", Length: 32},
			{Name: "email", DataType: "varchar", Length: 64},
		},
	},
}

// NewTable only exists on the reference side after its edits.
var NewTable = Table{
	Name: "new_table",
	DDL: "CREATE TABLE `new_table` (\n" +
		"  `some_id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `some_name` varchar(32) DEFAULT NULL,\n" +
		"  `some_date` date DEFAULT NULL,\n" +
		"  `some_int` int DEFAULT NULL,\n" +
		"  PRIMARY KEY (`some_id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
}

// Edits applied to the reference database so that it drifts from the target.
const (
	AddedColumnTable     = "bands"
	AddedColumnSignature = "`country` varchar(32) DEFAULT NULL"

	ModifiedColumnTable     = "festivals"
	ModifiedColumnSignature = "`name` varchar(64) DEFAULT NULL"

	DroppedColumnTable = "bands"
	DroppedColumn      = "city"

	DroppedTable = "managers"
)
