package vision

// ExtractionPrompt is the fixed instruction sent with every meter photograph.
// It pins the reply to a bare JSON object and encodes the meter-specific
// decimal rules: electricity meters show one implied decimal digit, gas
// meters three (the fractional liters, usually marked red).
const ExtractionPrompt = `Analyze this image of a utility meter (electricity, water, or gas meter) and extract the following information as JSON:

{
  "meter_id": "The ID/serial number of the meter (if visible, otherwise 'UNKNOWN')",
  "meter_type": "electricity" | "water" | "gas" | "unknown",
  "reading_value": the number the meter displays (digits only, as a number),
  "unit": "kWh" | "m3" | "unknown",
  "confidence": "high" | "medium" | "low",
  "confidence_score": 0.0 to 1.0 (numeric value)
}

Important:
- Identify the meter type from its design and labeling
- Extract the displayed number exactly
- The meter ID is usually printed on the meter (top right or bottom)
- Set confidence based on image quality, legibility, and clarity
- confidence_score must be between 0.0 (very uncertain) and 1.0 (very certain)
- Reply ONLY with the bare JSON object
- NO Markdown formatting
- No additional explanation or text
- For electricity meters: the last displayed digit is ALWAYS behind the decimal point.
- For gas meters: the last THREE digits (often marked red) are behind the decimal point. The meter shows three decimal places.`
