package service

// Prompts sent with each bill image. The wording and the JSON key names are
// load-bearing: the ledger consumers were tuned against these exact field
// labels, so changes here change the sheet columns.

const classifyPrompt = `Analyze this image of a bill. Your task is to determine two things:
1. Bill Type: Is this a "Loading Bill" or an "Unloading Bill"?
   - A Loading Bill usually has the seller's name prominently at the top.
   - An Unloading Bill usually has the buyer's name prominently at the top.
2. Party Name: Extract the full name of this primary party.
Provide the output in a clean JSON format with keys "bill_type" and "party_name".`

const extractPrompt = `You are an expert OCR data extractor for agricultural commodity bills.
From the provided image, extract the following fields. If a field is not present, use "N/A".
- Contract No: (P.O. No. or Contract No.)
- Bill No:
- Date:
- Lorry No: (Vehicle No. or Truck/Gadi Number)
- Party Name: (Buyer/Seller Name)
- Weight: (Total weight or 'Vajan' in kg)
- Rate: (Rate or 'Bhav')
- Bags: (Total bags/Katte/Bore)
- Quality: (The type of commodity, e.g., Paddy, IR धान, Rice, etc.)
Provide the output as a single, clean JSON object.`
