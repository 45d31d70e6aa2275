package geo

// fsaCoordinates holds curated centroids for dense metro FSAs.
var fsaCoordinates = map[string]Coordinate{
	// Toronto core
	"M5V": {Lat: 43.6426, Lng: -79.3871},
	"M5H": {Lat: 43.6497, Lng: -79.3832},
	"M5J": {Lat: 43.6408, Lng: -79.3818},
	"M5A": {Lat: 43.6542, Lng: -79.3606},
	"M5B": {Lat: 43.6572, Lng: -79.3783},
	"M5G": {Lat: 43.6579, Lng: -79.3873},
	"M5S": {Lat: 43.6628, Lng: -79.3957},
	"M5T": {Lat: 43.6532, Lng: -79.4000},
	"M4W": {Lat: 43.6790, Lng: -79.3775},
	"M4Y": {Lat: 43.6659, Lng: -79.3832},
	"M6K": {Lat: 43.6376, Lng: -79.4285},
	"M6J": {Lat: 43.6479, Lng: -79.4197},
	"M6G": {Lat: 43.6690, Lng: -79.4225},
	"M4C": {Lat: 43.6896, Lng: -79.3076},
	"M4E": {Lat: 43.6764, Lng: -79.2930},
	// Toronto outer
	"M1B": {Lat: 43.8066, Lng: -79.1943},
	"M1P": {Lat: 43.7574, Lng: -79.2730},
	"M2N": {Lat: 43.7701, Lng: -79.4133},
	"M2J": {Lat: 43.7785, Lng: -79.3466},
	"M3C": {Lat: 43.7259, Lng: -79.3400},
	"M3H": {Lat: 43.7545, Lng: -79.4423},
	"M6M": {Lat: 43.6911, Lng: -79.4760},
	"M8V": {Lat: 43.6056, Lng: -79.5013},
	"M9W": {Lat: 43.7068, Lng: -79.5940},
	"M9C": {Lat: 43.6435, Lng: -79.5772},
	// GTA
	"L4C": {Lat: 43.8828, Lng: -79.4403},
	"L4B": {Lat: 43.8440, Lng: -79.3796},
	"L5B": {Lat: 43.5890, Lng: -79.6441},
	"L5M": {Lat: 43.5631, Lng: -79.7139},
	"L6Y": {Lat: 43.6839, Lng: -79.7590},
	"L6T": {Lat: 43.7213, Lng: -79.7168},
	"L3R": {Lat: 43.8561, Lng: -79.3370},
	"L4L": {Lat: 43.8121, Lng: -79.5616},
	"L1S": {Lat: 43.8384, Lng: -79.0868},
	"L1G": {Lat: 43.8971, Lng: -78.8658},
	"L9T": {Lat: 43.5183, Lng: -79.8774},
	"L6H": {Lat: 43.4675, Lng: -79.6877},
	"L7L": {Lat: 43.3255, Lng: -79.7990},
	"L8P": {Lat: 43.2557, Lng: -79.8711},
	// Ottawa
	"K1P": {Lat: 45.4215, Lng: -75.6972},
	"K1N": {Lat: 45.4283, Lng: -75.6862},
	"K2P": {Lat: 45.4167, Lng: -75.6925},
	"K2G": {Lat: 45.3476, Lng: -75.7364},
	// Montreal
	"H2X": {Lat: 45.5088, Lng: -73.5617},
	"H3B": {Lat: 45.5017, Lng: -73.5673},
	"H3A": {Lat: 45.5048, Lng: -73.5772},
	// Vancouver
	"V6B": {Lat: 49.2827, Lng: -123.1207},
	"V6E": {Lat: 49.2872, Lng: -123.1299},
	"V5K": {Lat: 49.2812, Lng: -123.0405},
	// Calgary
	"T2P": {Lat: 51.0447, Lng: -114.0719},
	"T2R": {Lat: 51.0395, Lng: -114.0803},
	// Edmonton
	"T5J": {Lat: 53.5461, Lng: -113.4938},
	"T5K": {Lat: 53.5396, Lng: -113.5120},
}

// regionCoordinates maps the first postal code letter to a representative
// point for the province or region. D, F, I, O, Q, U, W and Z are never
// issued and have no entry.
var regionCoordinates = map[byte]Coordinate{
	'A': {Lat: 47.5615, Lng: -52.7126},  // Newfoundland and Labrador
	'B': {Lat: 44.6488, Lng: -63.5752},  // Nova Scotia
	'C': {Lat: 46.2382, Lng: -63.1311},  // Prince Edward Island
	'E': {Lat: 45.9636, Lng: -66.6431},  // New Brunswick
	'G': {Lat: 46.8139, Lng: -71.2080},  // Eastern Quebec
	'H': {Lat: 45.5017, Lng: -73.5673},  // Montreal
	'J': {Lat: 45.4042, Lng: -71.8929},  // Western Quebec
	'K': {Lat: 44.2312, Lng: -76.4860},  // Eastern Ontario
	'L': {Lat: 43.5890, Lng: -79.6441},  // Central Ontario
	'M': {Lat: 43.6532, Lng: -79.3832},  // Toronto
	'N': {Lat: 42.9849, Lng: -81.2453},  // Southwestern Ontario
	'P': {Lat: 46.4917, Lng: -80.9930},  // Northern Ontario
	'R': {Lat: 49.8951, Lng: -97.1384},  // Manitoba
	'S': {Lat: 52.1332, Lng: -106.6700}, // Saskatchewan
	'T': {Lat: 51.0447, Lng: -114.0719}, // Alberta
	'V': {Lat: 49.2827, Lng: -123.1207}, // British Columbia
	'X': {Lat: 62.4540, Lng: -114.3718}, // Northwest Territories and Nunavut
	'Y': {Lat: 60.7212, Lng: -135.0568}, // Yukon
}
