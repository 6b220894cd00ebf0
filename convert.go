/*
NAME
  convert.go

DESCRIPTION
  convert.go implements the battery-voltage conversions exposed alongside
  the decoder: converting a raw vbat ADC reading to millivolts, and
  estimating the pack's cell count from the header's reference voltage.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package blackbox

// vbatADCMax is the ADC's full-scale reading (12-bit).
const vbatADCMax = 4095

// vbatToMillivolts converts a raw vbat ADC reading to millivolts, scaled by
// the header's declared vbatscale.
func vbatToMillivolts(vbat, vbatScale int32) int32 {
	return (vbat * 330 * vbatScale) / vbatADCMax
}

// estimateNumCells returns the smallest n in [1,8) such that
// vbatToMillivolts(vbatref)/100 is less than n times vbatmaxcellvoltage. It
// returns 8 if no such n exists in range, matching the original's behaviour
// of simply stopping the search at the loop bound.
func estimateNumCells(vbatRef, vbatScale, vbatMaxCellVoltage int32) int {
	reading := vbatToMillivolts(vbatRef, vbatScale) / 100
	for n := int32(1); n < 8; n++ {
		if reading < n*vbatMaxCellVoltage {
			return int(n)
		}
	}
	return 8
}
