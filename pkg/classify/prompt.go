package classify

// Prompt is the fixed instruction sent with every image. It asks for a bare
// item name so that sanitization only has to undo light decoration.
const Prompt = `Analyze this image and identify the waste item. Follow these rules:
1. Identify the main item in the image
2. Be specific about the material and type (e.g., "plastic water bottle" rather than just "bottle")
3. If there are multiple items, identify the most prominent one
4. Return ONLY the name of the item
5. Do not include any additional text or formatting

Examples of good responses:
- plastic water bottle
- aluminum soda can
- cardboard box
- glass wine bottle
- paper coffee cup
- action figure
- blade
- metal plate

Return ONLY the waste item name, no other text.`
